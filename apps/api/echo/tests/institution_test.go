package tests

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/storage/database/dummy"
	"github.com/trezcool/acolher/tests"
)

func Test_institutionApi(t *testing.T) {
	e := setup(t)
	hq := testutil.CreateInstitution(t, e.instRepo, "Secretaria")
	inst := testutil.CreateInstitution(t, e.instRepo, "Lar Esperança")
	admin := testutil.CreateProfile(t, e.profRepo, hq.ID, "Admin", "admin@acolher.org", "", core.RoleAdmin, true)
	coord := testutil.CreateProfile(t, e.profRepo, inst.ID, "Clara", "clara@lar.org", "", core.RoleCoordinator, true)
	staff := testutil.CreateProfile(t, e.profRepo, inst.ID, "Rita", "rita@lar.org", "", core.RoleStaff, true)
	testutil.CreateChild(t, e.childRepo, inst.ID, "Ana")

	adminToken := getToken(t, e.conf, admin)
	coordToken := getToken(t, e.conf, coord)
	path := "/v1/institutions/" + inst.ID

	runTests(t, e, []httpTest{
		{name: "auth required", path: "/v1/institutions", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "directory", path: "/v1/institutions", token: getToken(t, e.conf, staff), wantCode: http.StatusOK},
		{name: "not found", path: "/v1/institutions/missing", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "coordinator updates own", method: http.MethodPut, path: path, token: coordToken,
			body: []byte(`{"name":"Lar Esperança","city":"Olinda","state":"PE"}`), wantCode: http.StatusOK,
		},
		{
			name: "staff cannot update", method: http.MethodPut, path: path, token: getToken(t, e.conf, staff),
			body: []byte(`{"name":"Lar"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "admin only create", method: http.MethodPost, path: "/v1/institutions", token: coordToken,
			body: []byte(`{"name":"Lar Novo","city":"Recife","state":"PE"}`), wantCode: http.StatusForbidden,
		},
		{name: "coordinator cannot delete", method: http.MethodDelete, path: path, token: coordToken, wantCode: http.StatusForbidden},
		{
			name: "viewing admin cannot delete", method: http.MethodDelete, path: path, token: adminToken, viewing: inst.ID,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("blocked cascade step", func(t *testing.T) {
		e.db.FailOn(string(institution.TableChildren), dummydb.OpDelete, errors.New("violates foreign key constraint"))
		defer e.db.ClearFaults()

		rec := e.serve(newAuthRequest(http.MethodDelete, path, adminToken))
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		var body map[string]string
		unmarshall(t, rec, &body)
		assert.Equal(t, string(institution.TableChildren), body["table"])
		assert.NotEmpty(t, body["error"])

		rec = e.serve(newAuthRequest(http.MethodGet, path, adminToken))
		assert.Equal(t, http.StatusOK, rec.Code, "institution is kept")
	})

	t.Run("cascade delete", func(t *testing.T) {
		e.db.ResetDeleteLog()
		rec := e.serve(newAuthRequest(http.MethodDelete, path, adminToken))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		want := make([]string, 0, len(institution.CascadeOrder)+1)
		for _, table := range institution.CascadeOrder {
			want = append(want, string(table))
		}
		want = append(want, string(institution.TableInstitutions))
		assert.Equal(t, want, e.db.DeleteLog())

		rec = e.serve(newAuthRequest(http.MethodGet, path, adminToken))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// the coordinator's profile went with it
		rec = e.serve(newAuthRequest(http.MethodGet, "/v1/children", coordToken))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
