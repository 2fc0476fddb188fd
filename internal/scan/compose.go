package scan

import (
	"fmt"
	"html"
	"strings"
)

// Message is a composed notification ready for a delivery transport.
type Message struct {
	Subject  string
	HTMLBody string
}

// Compose builds the owner notification. Deterministic and free of I/O:
// the same inputs always produce the same message. Missing names fall back
// to "Pet owner" / "your pet"; a map link is included only when both
// coordinates are present.
func Compose(ownerName, petName string, lat, lng *float64) Message {
	if strings.TrimSpace(ownerName) == "" {
		ownerName = defaultOwnerName
	}
	if strings.TrimSpace(petName) == "" {
		petName = defaultPetName
	}

	var location string
	if lat != nil && lng != nil {
		mapsURL := fmt.Sprintf("https://www.google.com/maps?q=%v,%v", *lat, *lng)
		location = fmt.Sprintf(
			`<p>Click the button to see the reported location:</p>
<p><a href="%[1]s" style="display:inline-block;background:#2563eb;color:#fff;padding:10px 14px;border-radius:8px;text-decoration:none;">View Location</a></p>
<p style="font-size:12px;color:#555;">Or copy this link: %[1]s</p>`, mapsURL)
	} else {
		location = "<p>The scanner did not share their location.</p>"
	}

	body := fmt.Sprintf(
		`<div style="font-family: system-ui, -apple-system, Segoe UI, Roboto, Arial; line-height:1.5; color:#111;">
<h3 style="margin:0 0 8px">Hello %s,</h3>
<p>Your pet <strong>%s</strong> was scanned via its QR tag.</p>
%s
<hr style="border:none;border-top:1px solid #eee;margin:12px 0;">
<p style="font-size:12px;color:#666;">If you didn't expect this, check the location or contact the scanner directly.</p>
</div>`,
		html.EscapeString(ownerName), html.EscapeString(petName), location)

	return Message{
		Subject:  fmt.Sprintf("Your pet %s may have been found", petName),
		HTMLBody: body,
	}
}
