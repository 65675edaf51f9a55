// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax, which keeps the API key and
// database password out of the file:
//
//	instance:
//	  id: rwsync-1
//	rainwave:
//	  station: 1
//	  user_id: 2
//	  api_key: ${RAINWAVE_API_KEY}
//	database:
//	  enabled: true
//	  host: localhost
//	  name: rainwave
//	  user: rw
//	  password: ${PGPASSWORD}
package config
