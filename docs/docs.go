// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/events": {
            "get": {
                "summary": "List events",
                "parameters": [
                    {"type": "integer", "description": "page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/httpgin.EventResponse"}}}
                }
            }
        },
        "/events/{id}": {
            "get": {
                "summary": "Get event",
                "parameters": [{"type": "integer", "description": "Event ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.EventResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/events/{id}/availability": {
            "get": {
                "summary": "Get remaining units per fare class",
                "parameters": [{"type": "integer", "description": "Event ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.EventCounts"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/events/{id}/reservations": {
            "post": {
                "summary": "Reserve units of one fare class (idempotent)",
                "parameters": [
                    {"type": "integer", "description": "Event ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "replay key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.CreateReservationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.ReservationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "409": {"description": "insufficient stock / idem in progress", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "429": {"description": "rate limited", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/carts/{user_id}": {
            "get": {
                "summary": "Get a user's cart",
                "parameters": [{"type": "integer", "description": "User ID", "name": "user_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CartResponse"}}}
            },
            "put": {
                "summary": "Replace a user's cart",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "user_id", "in": "path", "required": true},
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.PutCartRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CartResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/checkout": {
            "post": {
                "summary": "Reserve the cart and open a payment",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.CheckoutRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.CheckoutResponse"}},
                    "409": {"description": "insufficient stock", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "503": {"description": "payment processor unavailable", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "summary": "Get order with tickets",
                "parameters": [{"type": "string", "description": "Order ID (uuid)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.OrderResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/tickets/{id}/cancel": {
            "post": {
                "summary": "Cancel a ticket",
                "parameters": [{"type": "string", "description": "Ticket ID (uuid)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CancelTicketResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/tickets/{id}/refund": {
            "post": {
                "summary": "Refund a paid ticket",
                "parameters": [{"type": "string", "description": "Ticket ID (uuid)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/webhooks/payments": {
            "post": {
                "summary": "Payment notification from the processor",
                "parameters": [{"type": "string", "description": "sha256=<hex hmac of body>", "name": "X-Signature", "in": "header"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.WebhookResponse"}},
                    "401": {"description": "invalid signature", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "503": {"description": "retry later", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/admin/producers": {
            "post": {
                "summary": "Create producer",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.CreateProducerRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.CreateProducerResponse"}}}
            }
        },
        "/admin/producers/{id}/payout-account": {
            "put": {
                "summary": "Set producer payout account",
                "parameters": [
                    {"type": "integer", "description": "Producer ID", "name": "id", "in": "path", "required": true},
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.SetPayoutAccountRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/admin/events": {
            "post": {
                "summary": "Create event with fare capacities",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.CreateEventRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.CreateEventResponse"}}}
            }
        },
        "/admin/events/{id}/inventory": {
            "get": {
                "summary": "Inventory ledger check of an event",
                "parameters": [{"type": "integer", "description": "Event ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.InventoryResponse"}}}
            }
        }
    },
    "definitions": {
        "domain.EventCounts": {
            "type": "object",
            "properties": {
                "event_id": {"type": "integer"},
                "full_count": {"type": "integer"},
                "half_count": {"type": "integer"}
            }
        },
        "httpgin.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "httpgin.EventResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "producer_id": {"type": "integer"},
                "title": {"type": "string"},
                "starts_at": {"type": "string"},
                "ends_at": {"type": "string"},
                "full_price": {"type": "string"},
                "half_price": {"type": "string"},
                "full_capacity": {"type": "integer"},
                "half_capacity": {"type": "integer"}
            }
        },
        "httpgin.CreateReservationRequest": {
            "type": "object",
            "required": ["user_id", "fare_class", "quantity"],
            "properties": {
                "user_id": {"type": "integer"},
                "fare_class": {"type": "string", "enum": ["full", "half"]},
                "quantity": {"type": "integer"},
                "hold_sec": {"type": "integer"}
            }
        },
        "httpgin.ReservationResponse": {
            "type": "object",
            "properties": {
                "order_id": {"type": "string"},
                "event_id": {"type": "integer"},
                "fare_class": {"type": "string"},
                "expires_at": {"type": "string"},
                "ticket_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "httpgin.PutCartRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/httpgin.CartItemInput"}}
            }
        },
        "httpgin.CartItemInput": {
            "type": "object",
            "properties": {
                "event_id": {"type": "integer"},
                "fare_class": {"type": "string", "enum": ["full", "half"]},
                "quantity": {"type": "integer"}
            }
        },
        "httpgin.CartResponse": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/httpgin.CartItemInput"}},
                "updated_at": {"type": "string"}
            }
        },
        "httpgin.CheckoutRequest": {
            "type": "object",
            "required": ["user_id"],
            "properties": {
                "user_id": {"type": "integer"},
                "hold_sec": {"type": "integer"}
            }
        },
        "httpgin.CheckoutResponse": {
            "type": "object",
            "properties": {
                "external_reference": {"type": "string"},
                "intent_id": {"type": "string"},
                "checkout_url": {"type": "string"},
                "reservations": {"type": "array", "items": {"$ref": "#/definitions/httpgin.ReservationResponse"}}
            }
        },
        "httpgin.TicketResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "order_id": {"type": "string"},
                "event_id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "fare_class": {"type": "string"},
                "unit_price": {"type": "string"},
                "status": {"type": "string"},
                "payment_id": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "httpgin.OrderResponse": {
            "type": "object",
            "properties": {
                "order_id": {"type": "string"},
                "tickets": {"type": "array", "items": {"$ref": "#/definitions/httpgin.TicketResponse"}}
            }
        },
        "httpgin.CancelTicketResponse": {
            "type": "object",
            "properties": {
                "ticket_id": {"type": "string"},
                "restored": {"type": "boolean"}
            }
        },
        "httpgin.WebhookResponse": {
            "type": "object",
            "properties": {"outcome": {"type": "string"}}
        },
        "httpgin.CreateProducerRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "payout_account_id": {"type": "string"}
            }
        },
        "httpgin.CreateProducerResponse": {
            "type": "object",
            "properties": {"producer_id": {"type": "integer"}}
        },
        "httpgin.SetPayoutAccountRequest": {
            "type": "object",
            "required": ["account_id"],
            "properties": {"account_id": {"type": "string"}}
        },
        "httpgin.CreateEventRequest": {
            "type": "object",
            "required": ["producer_id", "title", "starts_at", "ends_at", "full_price", "half_price"],
            "properties": {
                "producer_id": {"type": "integer"},
                "title": {"type": "string"},
                "starts_at": {"type": "string"},
                "ends_at": {"type": "string"},
                "full_price": {"type": "string"},
                "half_price": {"type": "string"},
                "full_capacity": {"type": "integer"},
                "half_capacity": {"type": "integer"}
            }
        },
        "httpgin.CreateEventResponse": {
            "type": "object",
            "properties": {"event_id": {"type": "integer"}}
        },
        "httpgin.InventoryResponse": {
            "type": "object",
            "properties": {
                "event_id": {"type": "integer"},
                "balanced": {"type": "boolean"},
                "lines": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TixPay API",
	Description:      "Ticket reservation, payment ingestion and producer settlement.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
