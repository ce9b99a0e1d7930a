// Package parser loads hitscript collection files.
//
// A collection is a YAML document (*.hitscript.yaml or *.hitscript.yml)
// holding shared variables, named environments and a list of requests.
// Each request may carry a pre-request script and a test script, inline or
// loaded from a file next to the collection.
//
//	name: users
//	variables:
//	  baseUrl: https://api.example.com
//	requests:
//	  - name: login
//	    method: POST
//	    url: "{{baseUrl}}/login"
//	    body: {user: demo}
//	    test: |
//	      pm.test.assertStatusCode(200);
//	      pm.variables.set("token", pm.response.json().token);
package parser
