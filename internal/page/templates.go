package page

// Thread pages are split into "open" and "close" so streaming responses can
// flush the shell before the walk finishes. Every dynamic value is either a
// plain string escaped by html/template or a render fragment placed in
// element content.

const shellHead = `{{define "shellHead"}}<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{.Head}}<style>{{.CSS}}</style>
</head>
{{end}}`

const threadTemplates = `{{define "open"}}{{template "shellHead" .}}<body>
{{.Header}}
<main class="thread">
{{end}}

{{define "post"}}{{.}}
{{end}}

{{define "close"}}</main>
{{.Footer}}
</body>
</html>
{{end}}

{{define "thread"}}{{template "open" .}}{{range .Posts}}{{template "post" .}}{{end}}{{template "close" .}}{{end}}

{{define "fragments"}}{{range .}}{{template "post" .}}{{end}}{{end}}

{{define "streamError"}}<div class="stream-error"><p>Error loading thread: {{.}}</p></div>
</main>
<footer><a href="/">Try another thread</a></footer>
</body>
</html>
{{end}}`

const landingTemplate = `{{define "landing"}}{{template "shellHead" .}}<body>
<main class="landing">
<h1>sklonger</h1>
<p>Read a Bluesky thread as a single page.</p>
<form method="get" action="/">
<label for="url" class="sr-only">Bluesky post URL</label>
<input type="url" id="url" name="url" value="{{.Value}}" placeholder="https://bsky.app/profile/handle/post/id" required>
<button type="submit">Read thread</button>
</form>
{{if .Problem}}<p class="form-error" role="alert">{{.Problem}}</p>{{end}}
</main>
</body>
</html>
{{end}}`

const errorTemplate = `{{define "error"}}{{template "shellHead" .}}<body>
<main class="error-page">
<h1>{{.Code}}</h1>
<p>{{.Heading}}: {{.Message}}</p>
<a href="/">Try another thread</a>
</main>
</body>
</html>
{{end}}`
