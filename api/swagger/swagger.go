package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Institute API",
        "description": "Enrollment, billing and evaluation backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Students", "description": "Student billing profiles"},
        {"name": "Pricing", "description": "Price rules and quotes"},
        {"name": "Rates", "description": "Exchange rate versions"},
        {"name": "Enrollments", "description": "Enrollment lifecycle"},
        {"name": "Payments", "description": "Multi-currency payments"},
        {"name": "Receipts", "description": "PDF receipt downloads"},
        {"name": "Grades", "description": "Weighted evaluation engine"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new pair",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student billing profile",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentBillingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pricing/resolve": {
            "get": {
                "tags": ["Pricing"],
                "summary": "Resolve the price for a fee kind and category",
                "parameters": [
                    {"name": "fee_kind", "in": "query", "required": true, "type": "string"},
                    {"name": "category_id", "in": "query", "required": true, "type": "string"},
                    {"name": "student_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pricing/rules": {
            "get": {
                "tags": ["Pricing"],
                "summary": "List price rules",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rates/current": {
            "get": {
                "tags": ["Rates"],
                "summary": "Get the current exchange rate",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rates": {
            "post": {
                "tags": ["Rates"],
                "summary": "Publish a new exchange rate",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetRateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student into a program",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateEnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get an enrollment with its paid totals",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/void": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Void an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/payments/registration": {
            "post": {
                "tags": ["Payments"],
                "summary": "Pay the registration fee",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Insufficient payment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/payments/recurring": {
            "post": {
                "tags": ["Payments"],
                "summary": "Pay a recurring unit",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecurringPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}/void": {
            "post": {
                "tags": ["Payments"],
                "summary": "Void a completed payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Payments"],
                "summary": "Export completed payments as a CSV ledger",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/payments/{id}/receipt": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Get a signed download token for a receipt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/download": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Download a receipt PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF file"}
                }
            }
        },
        "/enrollments/{id}/grades": {
            "post": {
                "tags": ["Grades"],
                "summary": "Record a grade for an evaluation component",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitGradeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/final-grade": {
            "get": {
                "tags": ["Grades"],
                "summary": "Compute the weighted final grade",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Finalize the grade, approving passing completed courses",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evaluation-types/{id}/weights-check": {
            "get": {
                "tags": ["Grades"],
                "summary": "Check whether component weights sum to 100",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "UpdateStudentBillingRequest": {
            "type": "object",
            "properties": {
                "internal": {"type": "boolean"},
                "role_id": {"type": "string"},
                "clear_role": {"type": "boolean"},
                "scholarship": {"type": "boolean"},
                "scholarship_pct": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "SetRateRequest": {
            "type": "object",
            "properties": {
                "rate": {"type": "string"}
            },
            "required": ["rate"]
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "program_id": {"type": "string"},
                "gross": {"type": "string"},
                "discount": {"type": "string"},
                "net": {"type": "string"}
            },
            "required": ["student_id", "program_id"]
        },
        "PaymentRequest": {
            "type": "object",
            "properties": {
                "cash_local": {"type": "string"},
                "cash_foreign": {"type": "string"},
                "card_local": {"type": "string"},
                "card_foreign": {"type": "string"},
                "change_local": {"type": "string"},
                "change_foreign": {"type": "string"},
                "idempotency_key": {"type": "string"}
            },
            "required": ["idempotency_key"]
        },
        "RecurringPaymentRequest": {
            "type": "object",
            "properties": {
                "cash_local": {"type": "string"},
                "cash_foreign": {"type": "string"},
                "card_local": {"type": "string"},
                "card_foreign": {"type": "string"},
                "change_local": {"type": "string"},
                "change_foreign": {"type": "string"},
                "idempotency_key": {"type": "string"},
                "unit_ref": {"type": "string"},
                "installment_no": {"type": "integer"}
            },
            "required": ["idempotency_key", "unit_ref"]
        },
        "SubmitGradeRequest": {
            "type": "object",
            "properties": {
                "component_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "score": {"type": "integer"}
            },
            "required": ["component_id"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
