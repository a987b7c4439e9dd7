package valueobject

import (
	"errors"
)

var (
	ErrInvalidPlatform = errors.New("invalid platform")
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// NewPlatform creates a new Platform value object
func NewPlatform(platform string) (Platform, error) {
	p := Platform(platform)
	switch p {
	case PlatformAndroid, PlatformIOS:
		return p, nil
	default:
		return "", ErrInvalidPlatform
	}
}

// String returns the string representation of the platform
func (p Platform) String() string {
	return string(p)
}

// Store returns the store name associated with the platform
func (p Platform) Store() string {
	if p == PlatformAndroid {
		return "play_store"
	}
	return "app_store"
}

// IsAndroid returns true if the platform is Android
func (p Platform) IsAndroid() bool {
	return p == PlatformAndroid
}

// IsIOS returns true if the platform is iOS
func (p Platform) IsIOS() bool {
	return p == PlatformIOS
}
