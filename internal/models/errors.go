package models

import (
	"fmt"

	"github.com/valyala/fasthttp"
)

// Gateway error codes. The numbering is part of the public contract:
// clients key retry and alerting behavior off these values.
const (
	ErrConfigurationMissing        = 131
	ErrNoHealthyHost               = 132
	ErrBackendUnresponsive         = 133
	ErrRequestTimeoutExceeded      = 134
	ErrProxyConnectionError        = 135
	ErrKeyRequired                 = 136
	ErrNoRemoteKeyFound            = 137
	ErrMissingRoute                = 139
	ErrNoACLConfigured             = 154
	ErrGeoDenied                   = 155
	ErrDeviceDenied                = 156
	ErrServiceGroupDenied          = 157
	ErrServiceIdentityRequired     = 158
	ErrAPIRestricted               = 159
	ErrAPIGroupDenied              = 160
	ErrAPIIdentityRequired         = 161
	ErrInternal                    = 164
	ErrOAuthFailed                 = 166
	ErrTooManyRequests             = 168
	ErrRoamingResolutionFailed     = 170
	ErrRemoteRegistryUnavailable   = 207
	ErrRemoteRegistryMisconfigured = 208
)

// GatewayError is the structured failure handed back to the HTTP entry
// point: an opaque small code, a human message and the status to render.
type GatewayError struct {
	Code    int
	Message string
	Status  int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

var errorTable = map[int]GatewayError{
	ErrConfigurationMissing:        {ErrConfigurationMissing, "no configuration found for the requested service", fasthttp.StatusInternalServerError},
	ErrNoHealthyHost:               {ErrNoHealthyHost, "unable to find a healthy host for the requested service", fasthttp.StatusBadGateway},
	ErrBackendUnresponsive:         {ErrBackendUnresponsive, "service heartbeat is not responding", fasthttp.StatusBadGateway},
	ErrRequestTimeoutExceeded:      {ErrRequestTimeoutExceeded, "request time exceeded the configured renewal limit", fasthttp.StatusGatewayTimeout},
	ErrProxyConnectionError:        {ErrProxyConnectionError, "error occurred while redirecting the request", fasthttp.StatusBadGateway},
	ErrKeyRequired:                 {ErrKeyRequired, "a valid tenant key is required to access this gateway", fasthttp.StatusUnauthorized},
	ErrNoRemoteKeyFound:            {ErrNoRemoteKeyFound, "no remote key found for the requested environment", fasthttp.StatusForbidden},
	ErrMissingRoute:                {ErrMissingRoute, "no route was provided to proxy the request to", fasthttp.StatusBadRequest},
	ErrNoACLConfigured:             {ErrNoACLConfigured, "access denied: no ACL configuration found for this service", fasthttp.StatusUnauthorized},
	ErrGeoDenied:                   {ErrGeoDenied, "geographic location denied access to this API", fasthttp.StatusForbidden},
	ErrDeviceDenied:                {ErrDeviceDenied, "device denied access to this API", fasthttp.StatusForbidden},
	ErrServiceGroupDenied:          {ErrServiceGroupDenied, "user group does not have access to this service", fasthttp.StatusForbidden},
	ErrServiceIdentityRequired:     {ErrServiceIdentityRequired, "user login is required to access this service", fasthttp.StatusUnauthorized},
	ErrAPIRestricted:               {ErrAPIRestricted, "API is restricted and not listed in the ACL", fasthttp.StatusForbidden},
	ErrAPIGroupDenied:              {ErrAPIGroupDenied, "user group does not have access to this API", fasthttp.StatusForbidden},
	ErrAPIIdentityRequired:         {ErrAPIIdentityRequired, "user login is required to access this API", fasthttp.StatusUnauthorized},
	ErrInternal:                    {ErrInternal, "unknown error occurred", fasthttp.StatusInternalServerError},
	ErrOAuthFailed:                 {ErrOAuthFailed, "oauth token verification failed", fasthttp.StatusUnauthorized},
	ErrTooManyRequests:             {ErrTooManyRequests, "request rate limit exceeded for this tenant", fasthttp.StatusTooManyRequests},
	ErrRoamingResolutionFailed:     {ErrRoamingResolutionFailed, "unable to resolve tenant or registry for the token environment", fasthttp.StatusInternalServerError},
	ErrRemoteRegistryUnavailable:   {ErrRemoteRegistryUnavailable, "unable to load the registry of the requested environment", fasthttp.StatusInternalServerError},
	ErrRemoteRegistryMisconfigured: {ErrRemoteRegistryMisconfigured, "the requested environment registry has no protocol or domain", fasthttp.StatusInternalServerError},
}

// GetError returns the structured error for a code, falling back to the
// generic internal error for unknown values.
func GetError(code int) *GatewayError {
	if e, ok := errorTable[code]; ok {
		err := e
		return &err
	}
	err := errorTable[ErrInternal]
	return &err
}
