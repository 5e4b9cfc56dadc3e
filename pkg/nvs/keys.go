package nvs

import (
	"fmt"
	"strings"
)

// Key names a stored value.
type Key uint8

// Keys
const (
	WifiSsid      Key = 0
	WifiPassword  Key = 1
	FingridApiKey Key = 2
	EntsoeApiKey  Key = 3
)

// AllKeys lists every valid key.
var AllKeys = []Key{WifiSsid, WifiPassword, FingridApiKey, EntsoeApiKey}

var keyNames = map[Key]string{
	WifiSsid:      "wifi-ssid",
	WifiPassword:  "wifi-password",
	FingridApiKey: "fingrid-api-key",
	EntsoeApiKey:  "entsoe-api-key",
}

// IsValid indicates k is one of AllKeys.
func (k Key) IsValid() bool {
	_, ok := keyNames[k]
	return ok
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// ParseKey parses a key name.
func ParseKey(name string) (Key, error) {
	for k, n := range keyNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}
