package tests

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/tests"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newUploadRequest(t *testing.T, path, token, filename string, data []byte, caption string) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("caption", caption))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func Test_childApi(t *testing.T) {
	e := setup(t)
	hq := testutil.CreateInstitution(t, e.instRepo, "Secretaria")
	inst := testutil.CreateInstitution(t, e.instRepo, "Lar Esperança")
	other := testutil.CreateInstitution(t, e.instRepo, "Abrigo Sol")
	admin := testutil.CreateProfile(t, e.profRepo, hq.ID, "Admin", "admin@acolher.org", "", core.RoleAdmin, true)
	staff := testutil.CreateProfile(t, e.profRepo, inst.ID, "Rita", "rita@lar.org", "", core.RoleStaff, true)
	outsider := testutil.CreateProfile(t, e.profRepo, other.ID, "Zé", "ze@sol.org", "", core.RoleStaff, true)
	ana := testutil.CreateChild(t, e.childRepo, inst.ID, "Ana")

	token := getToken(t, e.conf, staff)
	adminToken := getToken(t, e.conf, admin)
	path := "/v1/children/" + ana.ID

	runTests(t, e, []httpTest{
		{
			name: "create", method: http.MethodPost, path: "/v1/children", token: token,
			body: []byte(`{"name":"  Bia ","birth_date":"2015-04-02"}`), wantCode: http.StatusCreated,
		},
		{
			name: "create: bad date", method: http.MethodPost, path: "/v1/children", token: token,
			body: []byte(`{"name":"Caio","birth_date":"02/04/2015"}`), wantCode: http.StatusBadRequest,
		},
		{name: "retrieve", path: path, token: token, wantCode: http.StatusOK},
		{name: "not found", path: "/v1/children/missing", token: token, wantCode: http.StatusNotFound},
		{name: "other institution", path: path, token: getToken(t, e.conf, outsider), wantCode: http.StatusNotFound},
		{name: "admin sees own scope only", path: path, token: adminToken, wantCode: http.StatusNotFound},
		{name: "viewing admin reads", path: path, token: adminToken, viewing: inst.ID, wantCode: http.StatusOK},
		{
			name: "viewing admin cannot write", method: http.MethodPut, path: path, token: adminToken, viewing: inst.ID,
			body: []byte(`{"name":"Ana Maria"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: core.ErrReadOnly.Error()}),
		},
		{
			name: "update", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"name":"Ana Maria"}`), wantCode: http.StatusOK,
		},
		{
			name: "add note", method: http.MethodPost, path: path + "/notes", token: token,
			body: []byte(`{"body":"Primeira visita da avó."}`), wantCode: http.StatusCreated,
		},
		{
			name: "add note: empty", method: http.MethodPost, path: path + "/notes", token: token,
			body: []byte(`{"body":"   "}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("photos", func(t *testing.T) {
		rec := e.serve(newUploadRequest(t, path+"/photos", token, "ana.png", pngHeader, "Aniversário"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var photo child.Photo
		unmarshall(t, rec, &photo)
		assert.Equal(t, "image/png", photo.ContentType)
		assert.Equal(t, "Aniversário", photo.Caption)
		assert.Equal(t, 1, e.blobs.Len())

		rec = e.serve(newUploadRequest(t, path+"/photos", token, "notes.txt", []byte("plain text"), ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = e.serve(newUploadRequest(t, path+"/photos", token, "", nil, ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = e.serve(newAuthRequest(http.MethodGet, path+"/photos", token))
		require.Equal(t, http.StatusOK, rec.Code)
		var photos []child.Photo
		unmarshall(t, rec, &photos)
		assert.Len(t, photos, 1)

		rec = e.serve(newAuthRequest(http.MethodDelete, path+"/photos/"+photo.ID, token))
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, 0, e.blobs.Len())
	})

	t.Run("delete blocked by case file", func(t *testing.T) {
		testutil.CreateCaseFile(t, e.cfRepo, ana, ana.CreatedAt)
		rec := e.serve(newAuthRequest(http.MethodDelete, path, token))
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		var body map[string]string
		unmarshall(t, rec, &body)
		assert.Equal(t, "case_files", body["table"])
	})
}
