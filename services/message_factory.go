package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sopt-makers/sopt-push-notification/models"
)

// defaultMessage is required by the multi-platform publish envelope; it
// is only delivered when a platform-specific payload is absent.
const defaultMessage = "This is the default message which must be present when publishing a message to a topic. " +
	"The default message will only be used if a message is not present for one of the notification platforms."

const (
	sendAtLayout   = "2006-01-02 15:04:05"
	sendAtTimezone = "Asia/Seoul"
)

// MessageInput is the logical message a payload is built from. ID is the
// service's own message identifier, unrelated to the transport's.
type MessageInput struct {
	ID       string
	Title    string
	Content  string
	Category models.Category
	DeepLink string
	WebLink  string
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apnsPayload struct {
	APS struct {
		Alert apnsAlert `json:"alert"`
	} `json:"aps"`
	Category models.Category `json:"category"`
	ID       string          `json:"id"`
	DeepLink string          `json:"deepLink,omitempty"`
	WebLink  string          `json:"webLink,omitempty"`
	SendAt   string          `json:"sendAt"`
}

type fcmData struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Category models.Category `json:"category"`
	DeepLink string          `json:"deepLink,omitempty"`
	WebLink  string          `json:"webLink,omitempty"`
	SendAt   string          `json:"sendAt"`
}

type fcmPayload struct {
	Data fcmData `json:"data"`
}

// MessageFactory builds the per-platform wire payloads. Each payload is
// a JSON envelope whose platform entry is itself a JSON-encoded string,
// as the transport's json message structure requires.
type MessageFactory struct {
	loc *time.Location
	now func() time.Time
}

// NewMessageFactory builds a message factory stamping sendAt in the
// service's home timezone.
func NewMessageFactory() *MessageFactory {
	loc, err := time.LoadLocation(sendAtTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &MessageFactory{loc: loc, now: time.Now}
}

// APNS builds the iOS unicast payload.
func (f *MessageFactory) APNS(in MessageInput) (string, error) {
	envelope := map[string]string{"default": defaultMessage}
	inner, err := f.apnsString(in)
	if err != nil {
		return "", err
	}
	envelope["APNS"] = inner
	return marshalEnvelope(envelope)
}

// FCM builds the Android unicast payload.
func (f *MessageFactory) FCM(in MessageInput) (string, error) {
	envelope := map[string]string{"default": defaultMessage}
	inner, err := f.fcmString(in)
	if err != nil {
		return "", err
	}
	envelope["GCM"] = inner
	return marshalEnvelope(envelope)
}

// ForPlatform picks the unicast payload builder for a record's platform.
func (f *MessageFactory) ForPlatform(platform models.Platform, in MessageInput) (string, error) {
	switch platform {
	case models.PlatformIOS:
		return f.APNS(in)
	case models.PlatformAndroid:
		return f.FCM(in)
	}
	return "", fmt.Errorf("no payload for platform %q", platform)
}

// All builds the broadcast envelope carrying both platform payloads next
// to the default fallback.
func (f *MessageFactory) All(in MessageInput) (string, error) {
	apns, err := f.apnsString(in)
	if err != nil {
		return "", err
	}
	fcm, err := f.fcmString(in)
	if err != nil {
		return "", err
	}
	return marshalEnvelope(map[string]string{
		"default": defaultMessage,
		"APNS":    apns,
		"GCM":     fcm,
	})
}

func (f *MessageFactory) apnsString(in MessageInput) (string, error) {
	var p apnsPayload
	p.APS.Alert = apnsAlert{Title: in.Title, Body: in.Content}
	p.Category = in.Category
	p.ID = in.ID
	p.DeepLink = in.DeepLink
	p.WebLink = in.WebLink
	p.SendAt = f.sendAt()

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}
	return string(raw), nil
}

func (f *MessageFactory) fcmString(in MessageInput) (string, error) {
	p := fcmPayload{Data: fcmData{
		ID:       in.ID,
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		DeepLink: in.DeepLink,
		WebLink:  in.WebLink,
		SendAt:   f.sendAt(),
	}}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal fcm payload: %w", err)
	}
	return string(raw), nil
}

func (f *MessageFactory) sendAt() string {
	return f.now().In(f.loc).Format(sendAtLayout)
}

func marshalEnvelope(envelope map[string]string) (string, error) {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal message envelope: %w", err)
	}
	return string(raw), nil
}
