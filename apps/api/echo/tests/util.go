package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/jukwaa/apps/api/echo"
	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/user"
	logsvc "github.com/trezcool/jukwaa/services/logger"
	dummydb "github.com/trezcool/jukwaa/storage/database/dummy"
	testutil "github.com/trezcool/jukwaa/tests"
)

var (
	t0   = time.Date(2021, 3, 15, 9, 0, 0, 0, time.UTC)
	conf = testutil.NewConfig()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type testApp struct {
	*Server
	repo activity.Repository
	now  time.Time
}

func setup(t *testing.T) *testApp {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	app := &testApp{repo: dummydb.NewActivityRepository(db), now: t0}
	var ids int
	svc := activity.NewService(
		app.repo,
		logsvc.NewDiscardLogger(),
		activity.WithNowFunc(func() time.Time { return app.now }),
		activity.WithIDFunc(func() string {
			ids++
			return "act_" + strconv.Itoa(ids)
		}),
		activity.WithStrictOrder(conf.Activity.StrictStageOrder),
		activity.WithMaxStages(conf.Activity.MaxStages),
	)

	validate, translator := core.NewValidator()
	activity.InitValidators(validate, translator)

	app.Server = NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logsvc.NewDiscardLogger(),
		ActivitySvc: svc,
		Validate:    validate,
		Translator:  translator,
	})
	return app
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
	header   map[string]string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	for k, v := range tt.header {
		req.Header.Set(k, v)
	}
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr, conf)
	token, err := GenerateToken(claims, conf.SecretKey)
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

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
