package models

import (
	"fmt"
	"strings"
)

// Platform is the push channel a device token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "iOS"
	PlatformAndroid Platform = "Android"
	PlatformNone    Platform = ""
)

// ValidPlatform reports whether s names a known platform.
func ValidPlatform(s string) bool {
	switch Platform(s) {
	case PlatformIOS, PlatformAndroid, PlatformNone:
		return true
	}
	return false
}

// UnknownUser is the owner sentinel for a device registered before any
// user has been linked to it.
const UnknownUser = "unknown"

const (
	userKeyPrefix   = "u#"
	deviceKeyPrefix = "d#"
)

// UserKey builds the composite-key segment for a user id. Empty ids map
// to the unknown-user sentinel.
func UserKey(userID string) string {
	if userID == "" {
		userID = UnknownUser
	}
	return userKeyPrefix + userID
}

// DeviceKey builds the composite-key segment for a device token.
func DeviceKey(deviceToken string) string {
	return deviceKeyPrefix + deviceToken
}

// SplitKey splits a kind#identifier composite-key segment. A segment
// without both parts is stored-data corruption, not a normal miss.
func SplitKey(key string) (kind, id string, err error) {
	parts := strings.SplitN(key, "#", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed composite key %q", key)
	}
	return parts[0], parts[1], nil
}

// Entity discriminates record kinds sharing the token table.
type Entity string

const (
	EntityUser        Entity = "user"
	EntityDeviceToken Entity = "deviceToken"
	EntityHistory     Entity = "history"
)

// TokenRecord is one directional half of an active registration. The
// by-user record keys pk=u#<user>/sk=d#<token>, the by-device record the
// reverse; both carry identical platform, ARNs and creation time.
type TokenRecord struct {
	PK              string   `dynamodbav:"pk"`
	SK              string   `dynamodbav:"sk"`
	Entity          Entity   `dynamodbav:"entity"`
	Platform        Platform `dynamodbav:"platform"`
	DeviceToken     string   `dynamodbav:"fcmToken"`
	EndpointArn     string   `dynamodbav:"endpointArn"`
	SubscriptionArn string   `dynamodbav:"subscriptionArn"`
	CreatedAt       string   `dynamodbav:"createdAt"`
}

// UserID extracts the owning user id regardless of record direction.
func (r TokenRecord) UserID() (string, error) {
	for _, key := range []string{r.PK, r.SK} {
		kind, id, err := SplitKey(key)
		if err != nil {
			return "", err
		}
		if kind+"#" == userKeyPrefix {
			return id, nil
		}
	}
	return "", fmt.Errorf("no user segment in keys %q/%q", r.PK, r.SK)
}

// Token extracts the device token regardless of record direction.
func (r TokenRecord) Token() (string, error) {
	for _, key := range []string{r.PK, r.SK} {
		kind, id, err := SplitKey(key)
		if err != nil {
			return "", err
		}
		if kind+"#" == deviceKeyPrefix {
			return id, nil
		}
	}
	return "", fmt.Errorf("no device segment in keys %q/%q", r.PK, r.SK)
}
