// Package config loads the discovery service configuration.
//
// Configuration is YAML. Every scalar value is expanded from the environment
// with secret.ExpandEnvStrict before decoding, so a missing ${VAR} fails the
// load instead of producing an empty table name. Credential fields may hold
// secretref: references, resolved after defaults are applied.
//
//	service:
//	  name: template-discovery
//	cache:
//	  backend: dynamodb
//	  table: ${CACHE_TABLE}
//	store:
//	  backend: dynamodb
//	  table: ${TEMPLATES_TABLE}
//	auth:
//	  enabled: true
//	  issuer: https://cognito-idp.us-east-1.amazonaws.com/${USER_POOL_ID}
//	  audience: ${APP_CLIENT_ID}
package config
