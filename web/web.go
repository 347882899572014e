// Package web holds static pages served by the API.
package web

import _ "embed"

//go:embed reset_page.html
var ResetPage []byte
