package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Webhook is the body of a Cloud API webhook POST.
type Webhook struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes of one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one subscribed field update.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the messages of a "messages" change. Status updates
// (sent, delivered, read) arrive in the same field with no messages.
type ChangeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []WireMessage `json:"messages"`
}

// WireMessage is one inbound message as sent by the Cloud API.
type WireMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Inbound is a text message ready for the agent.
type Inbound struct {
	From string // as sent, bare international digits
	ID   string
	Text string
	Name string // profile name when the contact block carries one
}

const businessAccount = "whatsapp_business_account"

// Messages extracts the text messages of w. Non-text messages, status
// updates and entries missing a sender, id or body are skipped.
func (w Webhook) Messages() []Inbound {
	if w.Object != businessAccount {
		return nil
	}
	var out []Inbound
	for _, e := range w.Entry {
		for _, c := range e.Changes {
			if c.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(c.Value.Contacts))
			for _, ct := range c.Value.Contacts {
				names[ct.WaID] = ct.Profile.Name
			}
			for _, m := range c.Value.Messages {
				text := strings.TrimSpace(m.Text.Body)
				if m.From == "" || m.ID == "" || text == "" {
					continue
				}
				out = append(out, Inbound{From: m.From, ID: m.ID, Text: text, Name: names[m.From]})
			}
		}
	}
	return out
}

// Verify answers the webhook subscription handshake. It returns the
// challenge to echo and true when mode is "subscribe" and token matches.
func Verify(mode, token, challenge, expected string) (string, bool) {
	if mode != "subscribe" || expected == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return "", false
	}
	return challenge, true
}

// VerifySignature checks the X-Hub-Signature-256 header ("sha256=<hex>")
// of a webhook body against the app secret.
func VerifySignature(body []byte, header, appSecret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok || appSecret == "" {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
