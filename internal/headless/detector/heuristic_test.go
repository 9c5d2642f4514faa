package detector

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

func ok(body string) internship.FetchResponse {
	return internship.FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestShouldPromote(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	cases := []struct {
		name string
		resp internship.FetchResponse
		want bool
	}{
		{"empty body", ok(""), true},
		{"next.js shell", ok(`<html><body><div id="__next"></div></body></html>`), true},
		{"angular shell", ok(`<app-root ng-version="17.0.0"></app-root>`), true},
		{"script dense", ok(`<html><script>var a=1;</script><p>t</p></html>`), true},
		{"static cards", ok(`<div id="root"><div class="internship-card"><h3>Policy Intern</h3></div></div>`), false},
		{"unquoted class", ok(`<div class=card><h3>x</h3></div><script>boot()</script>`), false},
		{"unquoted unrelated class", ok(`<div class=wrapper data-role=job></div><div id="root"></div><script src="/app.js"></script>`), true},
		{"single quoted class", ok(`<article class='Job'>x</article><script>boot()</script>`), false},
		{"plain page", ok(`<html><body><p>` + strings.Repeat("text ", 50) + `</p></body></html>`), false},
		{"non 200", internship.FetchResponse{StatusCode: http.StatusNotFound}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, h.ShouldPromote(tc.resp))
		})
	}
}

func TestScriptCoverage(t *testing.T) {
	t.Parallel()

	require.Zero(t, scriptCoverage(nil))
	require.Zero(t, scriptCoverage([]byte("<p>no scripts</p>")))
	require.Equal(t, 100, scriptCoverage([]byte("<script>a()</script>")))
	require.Equal(t, 100, scriptCoverage([]byte("<script src=x")))
	require.Equal(t, 50, scriptCoverage([]byte("<script>x</script>"+strings.Repeat("a", 18))))
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultThreshold, NewHeuristic(0).BodyLengthThreshold)
	require.Equal(t, 10, NewHeuristic(10).BodyLengthThreshold)
}
