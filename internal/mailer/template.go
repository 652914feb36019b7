package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

var brandedTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta http-equiv="X-UA-Compatible" content="IE=edge">
<title>{{.Subject}}</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 40px 20px; line-height: 1.6; color: #334155; }
.email-wrapper { max-width: 640px; margin: 0 auto; background: #ffffff; border-radius: 16px; overflow: hidden; box-shadow: 0 20px 60px rgba(0,0,0,0.3); }
.email-header { background: linear-gradient(135deg, #1e293b 0%, #334155 100%); padding: 40px 30px; text-align: center; }
.logo { font-size: 28px; font-weight: 800; letter-spacing: 4px; color: #ffffff; }
.tagline { margin-top: 8px; font-size: 13px; color: #cbd5e1; letter-spacing: 1px; }
.email-content { padding: 40px 35px; }
.email-body { font-size: 16px; color: #334155; }
.divider { height: 1px; background: linear-gradient(90deg, transparent, #e2e8f0, transparent); margin: 30px 0 0; }
.email-footer { background: #f8fafc; padding: 30px; text-align: center; border-top: 1px solid #e2e8f0; }
.footer-text { font-size: 13px; color: #64748b; }
.footer-company { margin-top: 6px; font-size: 14px; font-weight: 600; color: #1e293b; }
.footer-location { margin-top: 4px; font-size: 13px; color: #64748b; }
.social-links { margin-top: 14px; font-size: 13px; color: #94a3b8; }
.social-link { color: #667eea; text-decoration: none; }
@media only screen and (max-width: 600px) {
  .email-content { padding: 30px 20px; }
  .email-header { padding: 30px 20px; }
  .email-body { font-size: 15px; }
}
</style>
</head>
<body>
<div class="email-wrapper">
  <div class="email-header">
    <div class="logo">GREY INSAAT</div>
    <div class="tagline">Professional Civil Engineering &amp; Project Management</div>
  </div>
  <div class="email-content">
    <div class="email-body">{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</div>
    <div class="divider"></div>
  </div>
  <div class="email-footer">
    <p class="footer-text">&copy; {{.Year}} Grey Insaat Limited. All rights reserved.</p>
    <p class="footer-company">Grey Insaat Limited</p>
    <p class="footer-location">Abuja, Nigeria</p>
    <div class="social-links">
      <a href="#" class="social-link">Website</a> |
      <a href="#" class="social-link">Contact</a> |
      <a href="#" class="social-link">Projects</a>
    </div>
  </div>
</div>
</body>
</html>
`))

// RenderHTML wraps a plain-text body in the branded layout. Body text is
// escaped; each newline becomes a <br>.
func RenderHTML(subject, body string, year int) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var buf bytes.Buffer
	// the template is checked at init; only the writer can fail and bytes.Buffer does not
	_ = brandedTemplate.Execute(&buf, struct {
		Subject string
		Lines   []string
		Year    int
	}{subject, strings.Split(body, "\n"), year})
	return buf.String()
}
