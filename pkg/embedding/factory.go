package embedding

import "github.com/m-mizutani/goerr/v2"

// ErrRemoteProviderRequiresKey is returned when the provider is
// explicitly forced to "remote" without an API key configured.
var ErrRemoteProviderRequiresKey = goerr.New("remote embedding provider requires an API key")

// SelectProvider implements the spec §6 "embedding provider: auto"
// rule: an explicit "remote" or "local" selection is honored (with
// "remote" requiring an API key); "auto" (or empty) picks remote when
// a key is present, else local.
func SelectProvider(mode string, remote RemoteConfig, local LocalConfig) (Provider, error) {
	switch mode {
	case "remote":
		if remote.APIKey == "" {
			return nil, ErrRemoteProviderRequiresKey
		}
		return NewRemoteProvider(remote), nil
	case "local":
		return NewLocalProvider(local), nil
	case "", "auto":
		if remote.APIKey != "" {
			return NewRemoteProvider(remote), nil
		}
		return NewLocalProvider(local), nil
	default:
		return nil, goerr.New("unknown embedding provider mode", goerr.V("mode", mode))
	}
}
