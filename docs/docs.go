// Package docs регистрирует Swagger-описание HTTP API для /docs/*.
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
        "/auth/tma": {
            "post": {
                "description": "Проверяет подпись и свежесть initData, находит или создаёт аккаунт и выдаёт пару JWT.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Вход по initData Telegram Mini App",
                "parameters": [
                    {"type": "string", "description": "tma <initData>", "name": "Authorization", "in": "header"},
                    {"description": "initData в теле запроса", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/tmaauth.Request"}}
                ],
                "responses": {
                    "200": {"description": "Успешный вход", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Некорректные или отсутствующие initData", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Неверная подпись или устаревшие initData", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Внутренняя ошибка сервера", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Проверка готовности",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Profile"],
                "summary": "Профиль текущего пользователя",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/trial": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Trial"],
                "summary": "Состояние пробного периода",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/trial/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Пробный период можно начать один раз.",
                "produces": ["application/json"],
                "tags": ["Trial"],
                "summary": "Запуск пробного периода",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Пробный период уже идёт или закончился", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "invalid_signature"},
                "error": {"type": "string", "example": "init data signature is invalid"},
                "status": {"type": "string", "example": "Error"}
            }
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "data": {},
                "error": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "tmaauth.Request": {
            "type": "object",
            "required": ["init_data"],
            "properties": {
                "init_data": {"type": "string", "maxLength": 8192}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo содержит экспортируемую информацию Swagger, чтобы клиенты могли ее изменять
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "TMA Fitness API",
	Description:      "Вход в Telegram Mini App по initData, профиль и пробный период.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InfoInstanceName, SwaggerInfo)
}
