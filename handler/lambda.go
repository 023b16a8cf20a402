package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"chat-relay/internal/domain"
	"chat-relay/internal/usecase"
)

// HandleAPIGateway serves the chat endpoint behind an API Gateway proxy
// integration.
func (h *Handler) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := correlationID(headerValue(req.Headers, correlationHeader))
	headers := map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: id,
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
				Headers:    headers,
				Body:       string(mustJSON(domain.ErrorResponse{Error: usecase.MsgInvalidJSON})),
			}, nil
		}
		body = decoded
	}

	status, payload := h.respond(ctx, id, req.HTTPMethod, body)
	if status == http.StatusMethodNotAllowed {
		headers["Allow"] = http.MethodPost
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(payload),
	}, nil
}

// headerValue looks up a header case-insensitively; API Gateway passes
// headers through with the client's casing.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
