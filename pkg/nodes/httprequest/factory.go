package httprequest

func (e *Executor) Name() string {
	return "HTTP Request"
}

func (e *Executor) Description() string {
	return "Calls an HTTP endpoint and stores the response in the workflow context"
}

// Schema returns the JSON schema for HTTP request node data.
func (e *Executor) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"endpoint": map[string]any{
				"type":        "string",
				"description": "URL to call. Supports templating with {{trigger.field}}",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/users/{{googleForm.responses.id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "JSON request body for POST, PUT and PATCH. Supports templating and the json helper",
				"examples": []string{
					`{"email": "{{googleForm.respondentEmail}}"}`,
					`{{json stripe.raw}}`,
				},
			},
			"variableName": map[string]any{
				"type":        "string",
				"description": "Context key the response is stored under",
				"default":     "httpResponse",
				"pattern":     `^[A-Za-z_$][A-Za-z0-9_$]*$`,
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     300,
			},
		},
		"required": []string{"endpoint", "method"},
	}
}
