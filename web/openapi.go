package web

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>sigbridge API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: "/docs/openapi.json", dom_id: "#swagger-ui"});
  </script>
</body>
</html>
`

func withDescription(s *openapi3.Schema, description string) *openapi3.Schema {
	s.Description = description
	return s
}

func objectSchema(required []string, props map[string]*openapi3.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for name, prop := range props {
		s.WithProperty(name, prop)
	}
	s.Required = required
	return s
}

func recipientSchema() *openapi3.Schema {
	return objectSchema([]string{"kind", "value"}, map[string]*openapi3.Schema{
		"kind":  openapi3.NewStringSchema().WithEnum("person", "group"),
		"value": withDescription(openapi3.NewStringSchema(), "Phone number or base64 group id"),
	})
}

func timestampSchema(description string) *openapi3.Schema {
	return withDescription(openapi3.NewInt64Schema().WithMin(1), description)
}

func jsonBody(schema *openapi3.Schema) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(schema)}
}

// actionResponses lists what every action can answer. ok is the 200 body
// schema, or nil for an empty reply.
func actionResponses(ok *openapi3.Schema) openapi3.Responses {
	success := openapi3.NewResponse().WithDescription("Accepted by the daemon")
	if ok != nil {
		success = success.WithJSONSchema(ok)
	}
	plain := func(description string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(description)}
	}
	return openapi3.Responses{
		"200": &openapi3.ResponseRef{Value: success},
		"400": plain("Request body is not valid JSON for this action"),
		"413": plain("Request body too large"),
		"422": plain("Request is well formed but invalid"),
		"429": plain("Rate limit exceeded"),
		"500": plain("Daemon call failed"),
	}
}

func action(id, summary string, body, ok *openapi3.Schema) *openapi3.PathItem {
	return &openapi3.PathItem{Post: &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		RequestBody: jsonBody(body),
		Responses:   actionResponses(ok),
	}}
}

// openAPIDocument describes the gateway actions, served from baseURL.
func openAPIDocument(baseURL string) *openapi3.T {
	sendResponse := objectSchema([]string{"timestamp"}, map[string]*openapi3.Schema{
		"timestamp": timestampSchema("Timestamp the daemon assigned to the message"),
	})

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   Name,
			Version: Version,
		},
		Servers: openapi3.Servers{{URL: baseURL}},
		Paths: openapi3.Paths{
			"/send": action("send", "Send a message to a person or group",
				objectSchema([]string{"recipient", "message"}, map[string]*openapi3.Schema{
					"recipient": recipientSchema(),
					"message":   openapi3.NewStringSchema(),
					"attachments": withDescription(
						openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()),
						"Base64 encoded JPEG images"),
				}), sendResponse),
			"/react": action("react", "React to a message with an emoji",
				objectSchema([]string{"recipient", "emoji", "author", "timestamp"}, map[string]*openapi3.Schema{
					"recipient": recipientSchema(),
					"emoji":     openapi3.NewStringSchema(),
					"author":    withDescription(openapi3.NewStringSchema(), "Author of the message reacted to"),
					"timestamp": timestampSchema("Timestamp of the message reacted to"),
					"remove":    openapi3.NewBoolSchema(),
				}), nil),
			"/receive": action("receipt", "Send a read or viewed receipt",
				objectSchema([]string{"recipient", "timestamp"}, map[string]*openapi3.Schema{
					"recipient": openapi3.NewStringSchema(),
					"timestamp": timestampSchema("Timestamp of the message being acknowledged"),
					"type":      openapi3.NewStringSchema().WithEnum("read", "viewed"),
				}), nil),
			"/typing": action("typing", "Start or stop the typing indicator",
				objectSchema([]string{"recipient"}, map[string]*openapi3.Schema{
					"recipient": recipientSchema(),
					"stop":      openapi3.NewBoolSchema(),
				}), nil),
			"/v2/send": action("sendCompat", "Send a message using the signal-cli-rest-api v2 body",
				objectSchema([]string{"recipients", "message"}, map[string]*openapi3.Schema{
					"recipients": withDescription(
						openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()),
						"Exactly one phone number or group id"),
					"message": openapi3.NewStringSchema(),
					"number":  withDescription(openapi3.NewStringSchema(), "Sending account"),
				}), sendResponse),
		},
	}
}

func (g *Gateway) HandleDocs(wr http.ResponseWriter, r *http.Request) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = wr.Write([]byte(docsPage))
}

func (g *Gateway) HandleOpenAPI(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, g.apiDoc)
}
