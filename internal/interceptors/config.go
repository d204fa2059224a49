package interceptors

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound is returned when a service names a profile that is not
// defined in config.
var ErrProfileNotFound = errors.New("interceptor profile not found")

// GetProfileConfig returns the map at
// [http.interceptors.<interceptorName>.profiles.<profileName>].
func GetProfileConfig(interceptorsCfg map[string]map[string]any, interceptorName, profileName string) (map[string]any, error) {
	if profileName == "" {
		return nil, fmt.Errorf("%s: empty profile name", interceptorName)
	}
	interceptorCfg, ok := interceptorsCfg[interceptorName]
	if !ok {
		return nil, fmt.Errorf("%w: no [http.interceptors.%s] table for %q", ErrProfileNotFound, interceptorName, profileName)
	}
	profiles, ok := interceptorCfg["profiles"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no profiles map for %q", ErrProfileNotFound, interceptorName, profileName)
	}
	profile, ok := profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("%w: %s profile %q", ErrProfileNotFound, interceptorName, profileName)
	}
	profileConfig, ok := profile.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s profile %q is not a map", interceptorName, profileName)
	}
	return profileConfig, nil
}
