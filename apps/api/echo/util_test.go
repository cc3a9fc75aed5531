package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	echoapi "github.com/scolab/backend/apps/api/echo"
	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
	"github.com/scolab/backend/storage/database/memdb"
	testutil "github.com/scolab/backend/tests"
)

type fixture struct {
	conf    *core.Config
	app     *echoapi.Server
	repo    deliverable.Repository
	files   *testutil.FileStorageStub
	spy     *testutil.NotifierSpy
	project string
	group   string

	teacherToken      string
	otherTeacherToken string
	adminToken        string
	studentToken      string
	outsiderToken     string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NopLogger{}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	deliverable.InitValidators(validate, translator)

	db := memdb.Open()
	dir := memdb.NewDirectory(db)
	repo := memdb.NewDeliverableRepository(db)
	files := testutil.NewFileStorageStub()
	spy := &testutil.NotifierSpy{}
	svc := deliverable.NewService(repo, dir, files, spy, logger, validate, translator, conf)

	teacher := dir.AddUser(testutil.NewUser("Teacher", user.RoleTeacher))
	otherTeacher := dir.AddUser(testutil.NewUser("Other Teacher", user.RoleTeacher))
	admin := dir.AddUser(testutil.NewUser("Admin", user.RoleAdmin))
	student := dir.AddUser(testutil.NewUser("Student", user.RoleStudent))
	outsider := dir.AddUser(testutil.NewUser("Outsider", user.RoleStudent))
	project := dir.AddProject(teacher.ID)
	group := dir.AddGroup(student.ID)

	return &fixture{
		conf:              conf,
		app:               echoapi.NewServer(conf, logger, svc),
		repo:              repo,
		files:             files,
		spy:               spy,
		project:           project,
		group:             group,
		teacherToken:      getToken(t, conf, teacher),
		otherTeacherToken: getToken(t, conf, otherTeacher),
		adminToken:        getToken(t, conf, admin),
		studentToken:      getToken(t, conf, student, group),
		outsiderToken:     getToken(t, conf, outsider, dir.AddGroup(outsider.ID)),
	}
}

type httpErr struct {
	Code      string            `json:"code"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields"`
	Retryable bool              `json:"retryable"`
}

func getToken(t *testing.T, conf *core.Config, usr user.User, groupIDs ...string) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(conf, usr, groupIDs...), conf.SecretKey)
	require.NoError(t, err)
	return token
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
	return req, httptest.NewRecorder()
}

func newUploadRequest(t *testing.T, path, token, filename, content string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func (f *fixture) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	f.app.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
