// Package secret resolves credentials referenced from Phoenix configuration.
//
// Configuration values go through two steps. Strict environment expansion
// (ExpandEnvStrict) requires every ${VAR} to be set. Secret references are
// then resolved by a Provider:
//
//	actuators:
//	  webhook:
//	    signing_key: secretref:env:PHOENIX_WEBHOOK_KEY
//	  alert:
//	    url: secretref:file:/var/run/secrets/phoenix/slack-url
//	redis:
//	  password: secretref:k8s:monitoring/phoenix-redis/password
//
// References may also appear inline ("Bearer secretref:env:TOKEN").
//
// Providers are created by name from a Registry. NewDefaultRegistry knows
// "file" and "env"; the "k8s" provider needs a Kubernetes client and is
// registered by the caller.
package secret
