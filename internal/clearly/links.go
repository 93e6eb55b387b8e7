package clearly

import (
	"net/url"
	"strings"
)

// Links builds the public URLs that go out in emails.
type Links struct {
	AppURL string
}

func (l Links) base() string {
	return strings.TrimRight(l.AppURL, "/")
}

// List is the public page of a list, addressed by its share token.
func (l Links) List(list List) string {
	return l.base() + "/list/" + url.PathEscape(list.Token)
}

func (l Links) Unsubscribe(token string) string {
	return l.base() + "/unsubscribe?token=" + url.QueryEscape(token)
}

func (l Links) Verify(token string) string {
	return l.base() + "/verify-subscription?token=" + url.QueryEscape(token)
}

// VerifySuccess and VerifyError are where a verification link lands in a browser.
func (l Links) VerifySuccess() string {
	return l.base() + "/verify-subscription-success"
}

func (l Links) VerifyError() string {
	return l.base() + "/verify-subscription-error"
}
