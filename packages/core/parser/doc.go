// Package parser reads courier request collections.
//
// A collection is a YAML document with optional variables, an optional
// service to wait for, and a list of requests. Each request carries its
// method, URL, headers, query params and one body form (json, body, form
// or multipart), plus assertions, captures and run metadata:
//
//	requests:
//	  - name: login
//	    method: POST
//	    url: "{{baseUrl}}/login"
//	    json: {user: ada}
//	    assert: ["status == 200"]
//	    capture: ["token=body:token"]
//	  - name: me
//	    url: "{{baseUrl}}/me"
//	    headers: {Authorization: "Bearer {{login.token}}"}
//	    depends: [login]
package parser
