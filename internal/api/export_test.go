package api

var JSONResponse = jsonResponse
