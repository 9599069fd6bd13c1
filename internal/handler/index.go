package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>CDN Proxy Server</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 40px; line-height: 1.6; }
.endpoint { background: #f8f9fa; padding: 15px; margin: 10px 0; border-radius: 8px; border-left: 4px solid #007bff; }
code { background: #e9ecef; padding: 2px 6px; border-radius: 4px; }
.example { color: #6c757d; font-size: 0.9em; margin-top: 5px; }
</style>
</head>
<body>
<h1>CDN Proxy Server</h1>
<p>Streaming proxy for jsDelivr and Google Fonts.</p>
<div class="endpoint">
<h3>jsDelivr</h3>
<p><code>/jsdelivr/*</code></p>
<div class="example">Example: <code>/jsdelivr/npm/vue@3.3.4/dist/vue.global.js</code></div>
</div>
<div class="endpoint">
<h3>Google Fonts CSS</h3>
<p><code>/fonts/css</code> or <code>/fonts/css2</code></p>
<div class="example">Example: <code>/fonts/css2?family=Roboto:wght@300;400;500;700&amp;display=swap</code></div>
</div>
<div class="endpoint">
<h3>Google Fonts files</h3>
<p><code>/fonts/s/*</code></p>
<div class="example">Referenced automatically by the CSS endpoints</div>
</div>
<div class="endpoint">
<h3>npm shortcut</h3>
<p><code>/package/&lt;name&gt;@&lt;version&gt;/&lt;file&gt;</code></p>
<div class="example">Example: <code>/package/lodash@4.17.21/lodash.min.js</code></div>
</div>
</body>
</html>
`

// Index serves the landing page listing the proxy endpoints.
func Index(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}
