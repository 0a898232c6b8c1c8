// Package curl converts between curl command lines and courier request
// configs.
//
//	cfg, err := curl.Parse(`curl -X POST https://api.example.com/users -H 'Content-Type: application/json' -d '{"name":"Ada"}'`)
//	cmd, err := curl.Command(cfg)
package curl
