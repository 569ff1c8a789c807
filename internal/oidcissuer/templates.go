package oidcissuer

import "html/template"

var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authorize {{.Request.ClientID}}</title></head>
<body>
<h1>{{.Request.ClientID}} wants to access your account</h1>
<p>Signed in as {{.Username}}</p>
<ul>
{{range .Request.Scopes}}<li>{{.}}</li>
{{end}}</ul>
<form method="post" action="{{.Action}}">
<input type="hidden" name="id" value="{{.Request.ID}}">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<button type="submit" name="decision" value="approve">Allow</button>
<button type="submit" name="decision" value="deny">Deny</button>
</form>
</body>
</html>
`))

var deviceTemplate = template.Must(template.New("device").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Connect a device</title></head>
<body>
{{if .Message}}<p>{{.Message}}</p>{{end}}
{{if .Device}}
<h1>{{.Device.ClientID}} wants to access your account</h1>
<p>Code {{.Device.UserCode}}, signed in as {{.Username}}</p>
<ul>
{{range .Device.Scopes}}<li>{{.}}</li>
{{end}}</ul>
<form method="post" action="{{.Action}}">
<input type="hidden" name="user_code" value="{{.Device.UserCode}}">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<button type="submit" name="decision" value="approve">Allow</button>
<button type="submit" name="decision" value="deny">Deny</button>
</form>
{{else if not .Finished}}
<form method="get" action="{{.Action}}">
<label>Code shown on your device <input name="user_code" autocomplete="off"></label>
<button type="submit">Continue</button>
</form>
{{end}}
</body>
</html>
`))
