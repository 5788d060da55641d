// Package secret resolves credentials referenced from configuration.
//
// Configuration files never carry secret values directly. A value is either
// expanded from the environment (see ExpandEnvStrict) or names a provider
// with the "secretref:" prefix:
//
//	auth:
//	  jwt:
//	    secret: secretref:file:/run/secrets/jwt-signing-key
//	aws:
//	  secret_access_key: secretref:env:LOCAL_DDB_SECRET
//
// A reference may also appear inside a longer value, as in
// "Bearer secretref:env:TOKEN". Providers are created by name from a
// Registry; "env" and "file" are built in.
package secret
