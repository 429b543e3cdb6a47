package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Academy API",
        "description": "Course enrollment ledger, payment journal, attendance billing and certificates.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Enrollments", "description": "Course registrations and their balances"},
        {"name": "Payments", "description": "Append-only payment journal"},
        {"name": "Attendance", "description": "Session attendance and second-session billing"},
        {"name": "Certificates", "description": "Completion certificates"},
        {"name": "Students", "description": "Student login provisioning"},
        {"name": "Reports", "description": "Revenue derived from the journal"}
    ],
    "paths": {
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List course registrations",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "paymentStatus", "in": "query", "type": "string", "enum": ["PENDING", "UNPAID", "PARTIALLY_PAID", "FULLY_PAID", "CANCELLED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student in a course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "COURSE_FULL, ALREADY_ENROLLED, OVERPAYMENT or VALIDATION_ERROR", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "COURSE_NOT_FOUND or STUDENT_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get a course registration",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Delete a registration and its payments",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "DELETE_NOT_ALLOWED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/ledger": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Registration journal and balance check",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/enrollments/{id}/payment": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Set the paid amount of a registration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjustPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "VERSION_CONFLICT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/cancel": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Cancel a registration",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/enrollments/{id}/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance history of a registration",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/enrollments/{id}/certificate": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue a completion certificate",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "COURSE_NOT_COMPLETED, CERTIFICATE_EXISTS or PAYMENT_REQUIRED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/attendance-session": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Record attendance for a course session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttendanceSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "DUPLICATE_ATTENDANCE or NOT_ENROLLED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments": {
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordPaymentRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/payments/{id}/void": {
            "post": {
                "tags": ["Payments"],
                "summary": "Void a journal entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object", "properties": {"reason": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/expenses": {
            "post": {
                "tags": ["Payments"],
                "summary": "Record an operating expense",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/account": {
            "post": {
                "tags": ["Students"],
                "summary": "Create a login for a student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "ACCOUNT_EXISTS", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/revenue": {
            "get": {
                "tags": ["Reports"],
                "summary": "Revenue summary derived from the payment journal",
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "required": ["studentId", "courseId"],
            "properties": {
                "studentId": {"type": "string"},
                "courseId": {"type": "string"},
                "totalAmount": {"type": "string", "format": "decimal"},
                "paidAmount": {"type": "string", "format": "decimal"},
                "method": {"type": "string", "enum": ["CASH", "CARD", "TRANSFER", "WALLET"]},
                "notes": {"type": "string"},
                "pending": {"type": "boolean"}
            }
        },
        "AdjustPaymentRequest": {
            "type": "object",
            "properties": {
                "paidAmount": {"type": "string", "format": "decimal"},
                "method": {"type": "string"},
                "notes": {"type": "string"},
                "version": {"type": "integer"}
            }
        },
        "AttendanceSessionRequest": {
            "type": "object",
            "required": ["sessionDate", "entries"],
            "properties": {
                "sessionDate": {"type": "string", "format": "date"},
                "mode": {"type": "string", "enum": ["atomic", "partialOnError"]},
                "entries": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "studentId": {"type": "string"},
                            "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE", "EXCUSED"]},
                            "notes": {"type": "string"}
                        }
                    }
                }
            }
        },
        "RecordPaymentRequest": {
            "type": "object",
            "required": ["kind", "amount", "method"],
            "properties": {
                "kind": {"type": "string", "enum": ["COURSE_FEE", "CAFETERIA", "WORKSPACE", "EQUIPMENT", "OTHER"]},
                "amount": {"type": "string", "format": "decimal"},
                "registrationId": {"type": "string"},
                "workspaceBookingId": {"type": "string"},
                "cafeteriaOrderId": {"type": "string"},
                "studentId": {"type": "string"},
                "branchId": {"type": "string"},
                "method": {"type": "string"},
                "notes": {"type": "string"}
            }
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
                "fields": {"type": "object"}
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
