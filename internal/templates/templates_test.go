package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoadsEmbeddedTemplates(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	assert.True(t, r.Has("welcome"))
	assert.True(t, r.Has("marketing"))
	assert.False(t, r.Has("missing"))
	assert.Equal(t, []string{"marketing", "welcome"}, r.List())
}

func TestRenderWelcome(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out, err := r.Render("welcome", Data{
		FullName:       "Jane Doe",
		Email:          "jane@example.com",
		UnsubscribeURL: "https://app.example.com/unsubscribe/abc?email=welcome",
		StartURL:       "https://app.example.com/start",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome, Jane Doe!", out.Subject)
	assert.Contains(t, out.HTML, "Jane Doe")
	assert.Contains(t, out.HTML, `href="https://app.example.com/start"`)
	assert.Contains(t, out.HTML, `href="https://app.example.com/unsubscribe/abc?email=welcome"`)
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, err = r.Render("missing", Data{})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRegisterCustomTemplate(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	err = r.Register("followup", "Checking in, {{.FullName}}", `<html><body>Hi {{.FullName}}</body></html>`)
	require.NoError(t, err)

	out, err := r.Render("followup", Data{FullName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "Checking in, Jane", out.Subject)
	assert.Contains(t, out.HTML, "Hi Jane")
}

func TestRegisterRejectsBrokenTemplate(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	assert.Error(t, r.Register("broken", "{{.Oops", "<html></html>"))
	assert.Error(t, r.Register("broken", "ok", "{{end}}"))
}

func TestBodyEscapesData(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out, err := r.Render("welcome", Data{FullName: `<script>alert(1)</script>`})
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>alert(1)</script>")
}
