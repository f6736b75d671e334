package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/boltstore"
)

type mockSheet struct {
	mock.Mock
}

func (m *mockSheet) Get(address string) (formula.Value, error) {
	args := m.Called(address)
	v, _ := args.Get(0).(formula.Value)
	return v, args.Error(1)
}

func (m *mockSheet) Input(address string) (string, bool, error) {
	args := m.Called(address)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockSheet) Set(address, input string) error {
	return m.Called(address, input).Error(0)
}

func (m *mockSheet) Remove(address string) (bool, error) {
	args := m.Called(address)
	return args.Bool(0), args.Error(1)
}

func (m *mockSheet) Entries(sheet string) ([]boltstore.Entry, error) {
	args := m.Called(sheet)
	entries, _ := args.Get(0).([]boltstore.Entry)
	return entries, args.Error(1)
}

func (m *mockSheet) Evaluate(text, address string) (formula.Value, error) {
	args := m.Called(text, address)
	v, _ := args.Get(0).(formula.Value)
	return v, args.Error(1)
}

func (m *mockSheet) ClearCache() {
	m.Called()
}

func _parseJsonBody(w *httptest.ResponseRecorder) (response map[string]any, err error) {
	err = json.Unmarshal(w.Body.Bytes(), &response)
	return
}

func request(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, "/api/"+ApiVersion+path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestApiController_GetCellAction(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("should return cell value", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Get", "'Sheet1'!A1").Return(formula.Number(3), nil)
		sheet.On("Input", "'Sheet1'!A1").Return("=1+2", true, nil)

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodGet, "/sheets/Sheet1/A1", nil)
		response, err := _parseJsonBody(w)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "'Sheet1'!A1", response["cell"])
		assert.Equal(t, "=1+2", response["input"])
		assert.Equal(t, float64(3), response["value"])
		assert.Equal(t, "number", response["type"])
		assert.NotContains(t, response, "error")
	})

	t.Run("error values are values", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Get", mock.Anything).Return(formula.ErrDiv0, nil)
		sheet.On("Input", mock.Anything).Return("=1/0", true, nil)

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodGet, "/sheets/Sheet1/B2", nil)
		response, err := _parseJsonBody(w)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "error", response["type"])
		assert.Equal(t, "#DIV/0!", response["error"])
	})

	t.Run("empty cell", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Get", mock.Anything).Return(formula.Blank, nil)
		sheet.On("Input", mock.Anything).Return("", false, nil)

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodGet, "/sheets/Sheet1/C3", nil)
		response, err := _parseJsonBody(w)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "blank", response["type"])
		assert.Nil(t, response["value"])
	})

	t.Run("unimplemented", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Get", mock.Anything).
			Return(nil, &formula.UnimplementedError{Function: "INDIRECT", Cell: "Sheet1!A1"})

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodGet, "/sheets/Sheet1/A1", nil)
		response, err := _parseJsonBody(w)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, "INDIRECT", response["function"])
	})

	t.Run("sheet not found", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Get", mock.Anything).
			Return(nil, formula.NewApplicationError(formula.NotFound, `worksheet "Nope" not found`))

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodGet, "/sheets/Nope/A1", nil)
		response, err := _parseJsonBody(w)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, response["error"], "Nope")
	})
}

func TestApiController_SetCellAction(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("success write", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Set", "'Sheet1'!A1", "=2*3").Return(nil)
		sheet.On("Get", "'Sheet1'!A1").Return(formula.Number(6), nil)
		sheet.On("Input", "'Sheet1'!A1").Return("=2*3", true, nil)

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodPost, "/sheets/Sheet1/A1",
			map[string]string{"value": "=2*3"})
		response, err := _parseJsonBody(w)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, float64(6), response["value"])
		sheet.AssertExpectations(t)
	})

	t.Run("invalid formula", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Set", mock.Anything, "=SUM(").
			Return(fmt.Errorf("%w: %q", formula.ErrInvalidFormula, "SUM("))

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodPost, "/sheets/Sheet1/A1",
			map[string]string{"value": "=SUM("})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing value", func(t *testing.T) {
		sheet := &mockSheet{}

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodPost, "/sheets/Sheet1/A1",
			map[string]string{"formula": "=1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		sheet.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
	})

	t.Run("bad address", func(t *testing.T) {
		sheet := &mockSheet{}
		sheet.On("Set", "'Sheet1'!1A", "1").
			Return(formula.NewApplicationError(formula.InvalidArgument, `invalid address "1A"`))

		w := request(SetupRouter(NewApiController(sheet, nil)), http.MethodPost, "/sheets/Sheet1/1A",
			map[string]string{"value": "1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestApiController_DeleteCellAction(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sheet := &mockSheet{}
	sheet.On("Remove", "'Sheet1'!A1").Return(true, nil).Once()
	sheet.On("Remove", "'Sheet1'!A1").Return(false, nil).Once()
	router := SetupRouter(NewApiController(sheet, nil))

	assert.Equal(t, http.StatusNoContent, request(router, http.MethodDelete, "/sheets/Sheet1/A1", nil).Code)
	assert.Equal(t, http.StatusNotFound, request(router, http.MethodDelete, "/sheets/Sheet1/A1", nil).Code)
}

func TestApiController_EvaluateAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sheet := &mockSheet{}
	sheet.On("Evaluate", "=SUM(A1:A3)", "B1").Return(formula.Number(6), nil)
	sheet.On("Evaluate", "=NOW()", "A1").Return(formula.Number(45292.75), nil)
	sheet.On("ClearCache").Return()
	router := SetupRouter(NewApiController(sheet, nil))

	w := request(router, http.MethodPost, "/evaluate", map[string]string{"formula": "=SUM(A1:A3)", "at": "B1"})
	response, err := _parseJsonBody(w)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(6), response["value"])
	assert.Equal(t, "B1", response["cell"])

	w = request(router, http.MethodPost, "/evaluate", map[string]string{"formula": "=NOW()"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodPost, "/evaluate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(router, http.MethodPost, "/cache/clear", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	sheet.AssertNumberOfCalls(t, "ClearCache", 1)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{formula.NewUnimplementedError("OFFSET"), http.StatusNotImplemented},
		{fmt.Errorf("batch: %w", formula.ErrInvalidFormula), http.StatusUnprocessableEntity},
		{formula.NewApplicationError(formula.AlreadyExists, "x"), http.StatusConflict},
		{formula.NewApplicationError(formula.FailedPrecondition, "x"), http.StatusPreconditionFailed},
		{formula.NewApplicationError(formula.Internal, "x"), http.StatusInternalServerError},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "StatusOf(%v)", tt.err)
	}
}

// the API against a real store
func TestApiController_Store(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store, err := boltstore.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.AddSheet("Sheet1"))
	require.NoError(t, store.AddSheet("My Sheet"))

	router := SetupRouter(NewApiController(store, nil))
	set := func(path, value string) map[string]any {
		w := request(router, http.MethodPost, path, map[string]string{"value": value})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		response, err := _parseJsonBody(w)
		require.NoError(t, err)
		return response
	}

	assert.Equal(t, float64(2), set("/sheets/Sheet1/A1", "2")["value"])
	assert.Equal(t, float64(6), set("/sheets/Sheet1/A2", "=A1*3")["value"])
	assert.Equal(t, "hi", set("/sheets/My%20Sheet/B1", "hi")["value"])
	set("/sheets/Sheet1/A1", "5")

	w := request(router, http.MethodGet, "/sheets/sheet1/A2", nil)
	response, err := _parseJsonBody(w)
	require.NoError(t, err)
	assert.Equal(t, float64(15), response["value"])
	assert.Equal(t, "=A1*3", response["input"])

	w = request(router, http.MethodPost, "/sheets/Sheet1/A3", map[string]string{"value": `=INDIRECT("A1")`})
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = request(router, http.MethodGet, "/sheets/Sheet1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listing, err := _parseJsonBody(w)
	require.NoError(t, err)
	cells := listing["cells"].([]any)
	require.Len(t, cells, 3)
	assert.Equal(t, "unimplemented", cells[2].(map[string]any)["type"])

	w = request(router, http.MethodGet, "/sheets/Nope/A1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, http.StatusNoContent, request(router, http.MethodDelete, "/sheets/Sheet1/A1", nil).Code)
	w = request(router, http.MethodGet, "/sheets/Sheet1/A2", nil)
	response, err = _parseJsonBody(w)
	require.NoError(t, err)
	assert.Equal(t, float64(0), response["value"])
}
