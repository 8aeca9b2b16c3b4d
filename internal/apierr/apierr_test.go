package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAbort(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, http.StatusForbidden, "nope")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var body Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Detail != "nope" {
		t.Errorf("unexpected detail %q", body.Detail)
	}
	if !c.IsAborted() {
		t.Error("context should be aborted")
	}
}

func TestBindDetail(t *testing.T) {
	type form struct {
		Title string `json:"title" binding:"required"`
		Link  string `json:"link" binding:"required,url"`
	}

	r := gin.New()
	var detail string
	r.POST("/", func(c *gin.Context) {
		var f form
		detail = BindDetail(c.ShouldBindJSON(&f))
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"link":"not-a-url"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(detail, "title: This field is required.") {
		t.Errorf("missing title message in %q", detail)
	}
	if !strings.Contains(detail, "link: Enter a valid URL.") {
		t.Errorf("missing link message in %q", detail)
	}

	if got := BindDetail(errors.New("EOF")); got != "Invalid request body" {
		t.Errorf("unexpected fallback %q", got)
	}
}
