package gate

import (
	"fmt"
	"html"
	"net/http"
)

func writeLoginPage(w http.ResponseWriter, r *http.Request, serviceName, next, errorText string) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	service := html.EscapeString(serviceName)
	safeNext := html.EscapeString(safeNextTarget(next))
	errorBanner := ""
	if errorText != "" {
		errorBanner = `<p class="error" role="alert">` + html.EscapeString(errorText) + `</p>`
	}

	_, _ = fmt.Fprintf(w, `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Sign in to %s</title>
  <style>
    body {
      margin: 0;
      min-height: 100vh;
      display: grid;
      place-items: center;
      font-family: "Segoe UI", sans-serif;
      background: #f4f4f2;
      color: #1c2321;
    }
    .panel {
      width: min(92vw, 360px);
      background: #fff;
      border: 1px solid rgba(28, 35, 33, 0.12);
      border-radius: 12px;
      box-shadow: 0 12px 32px rgba(28, 35, 33, 0.08);
      padding: 28px;
    }
    h1 { margin: 0 0 4px; font-size: 1.3rem; }
    .service { color: #5d6b66; margin: 0 0 18px; }
    form { display: grid; gap: 12px; }
    label { display: grid; gap: 6px; font-size: 0.9rem; font-weight: 600; }
    input {
      font: inherit;
      padding: 10px 12px;
      border: 1px solid rgba(28, 35, 33, 0.18);
      border-radius: 8px;
    }
    button {
      font: inherit;
      font-weight: 700;
      padding: 10px;
      border: 0;
      border-radius: 8px;
      background: #1f6f54;
      color: #fff;
      cursor: pointer;
    }
    .error {
      margin: 0;
      padding: 10px 12px;
      border-radius: 8px;
      background: rgba(156, 47, 47, 0.08);
      color: #9c2f2f;
      font-weight: 600;
    }
  </style>
</head>
<body>
  <main class="panel">
    <h1>Sign in</h1>
    <p class="service">%s</p>
    %s
    <form method="post" action="%s" novalidate>
      <input type="hidden" name="next" value="%s">
      <label>
        Username
        <input type="text" name="username" autocomplete="username" autocapitalize="none" spellcheck="false" required autofocus>
      </label>
      <label>
        Password
        <input type="password" name="password" autocomplete="current-password" required>
      </label>
      <button type="submit">Continue</button>
    </form>
  </main>
</body>
</html>`,
		service,
		service,
		errorBanner,
		LoginPath,
		safeNext,
	)
}
