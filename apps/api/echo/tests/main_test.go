package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/acolher/apps/api/echo"
	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/community"
	"github.com/trezcool/acolher/core/finance"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
	"github.com/trezcool/acolher/core/schedule"
	"github.com/trezcool/acolher/services/blob"
	"github.com/trezcool/acolher/services/email"
	"github.com/trezcool/acolher/services/logger"
	"github.com/trezcool/acolher/storage/database/dummy"
	"github.com/trezcool/acolher/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app   *echoapi.Server
	conf  *core.Config
	db    *dummydb.DB
	blobs *blobsvc.MemoryStore

	instRepo  institution.Repository
	profRepo  profile.Repository
	childRepo child.Repository
	cfRepo    casefile.Repository
}

func setup(t *testing.T) env {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(conf, logger)
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := dummydb.Open()
	instRepo := dummydb.NewInstitutionRepository(db)
	profRepo := dummydb.NewProfileRepository(db)
	childRepo := dummydb.NewChildRepository(db)
	cfRepo := dummydb.NewCaseFileRepository(db)
	blobs := blobsvc.NewMemoryStore(conf.Blob.PublicBaseURL)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,

		InstitutionSvc: institution.NewService(db, instRepo, blobs, logger),
		ProfileSvc:     profile.NewService(db, profRepo, mailSvc, conf, logger),
		ChildSvc:       child.NewService(db, childRepo, blobs, logger),
		CaseFileSvc:    casefile.NewService(db, cfRepo, childRepo, nil, conf, logger),
		CommunitySvc:   community.NewService(db, dummydb.NewCommunityRepository(db)),
		ScheduleSvc:    schedule.NewService(dummydb.NewTaskRepository(db), childRepo),
		FinanceSvc:     finance.NewService(dummydb.NewFinanceRepository(db)),
	})
	t.Cleanup(func() { _ = app.Close() })

	return env{
		app:       app,
		conf:      conf,
		db:        db,
		blobs:     blobs,
		instRepo:  instRepo,
		profRepo:  profRepo,
		childRepo: childRepo,
		cfRepo:    cfRepo,
	}
}

// serve runs req through the app and returns the recorded response.
func (e env) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	viewing  string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

func (tt httpTest) request() *http.Request {
	req := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	if tt.viewing != "" {
		req.Header.Set("X-Viewing-Institution", tt.viewing)
	}
	return req
}

func getToken(t *testing.T, conf *core.Config, p profile.Profile) string {
	token, err := echoapi.GenerateToken(conf, p)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	checkCode(t, tt, rec)
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, e env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt.request())
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else {
				checkCode(t, tt, rec)
			}
		})
	}
}
