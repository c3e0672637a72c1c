package restapi

import (
	"encoding/json"
	"github.com/Viktor-Kode/bloghub/models"
	"log"
	"net/http"
	"os"
)

// general error codes
var (
	// TechnicalError - internal server error
	TechnicalError models.RequestErrorCode = models.NewRequestErrorCode("TECHNICAL_ERROR")
	// BadRequestBody - invalid body
	BadRequestBody models.RequestErrorCode = models.NewRequestErrorCode("BAD_BODY")
	// NoPermissions - user doesn't permissions to update/delete resource
	NoPermissions models.RequestErrorCode = models.NewRequestErrorCode("NO_PERMISSIONS")
	// InvalidRequest - error code for other errors
	InvalidRequest models.RequestErrorCode = models.NewRequestErrorCode("INVALID_REQUEST")
	// InvalidToken - request carries no valid session
	InvalidToken models.RequestErrorCode = models.NewRequestErrorCode("INVALID_TOKEN")
)

// logResponseError - reports responses that could not be encoded
var logResponseError = log.New(os.Stderr, "[restApi.response] ERROR: ", log.Ltime)

// Respond - helper function for responding with only status code
func Respond(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
}

// respond - writes the envelope as JSON. An envelope that can't be encoded becomes a bare 500
func respond(w http.ResponseWriter, code int, response *models.Response) {
	encodedResponse, err := json.Marshal(response)
	if err != nil {
		logResponseError.Printf("Error encoding response with status %d: %s", code, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(encodedResponse); err != nil {
		logResponseError.Printf("Error writing response: %s", err)
	}
}

// RespondWithError - responds with the error code in the envelope and no body
func RespondWithError(w http.ResponseWriter, code int, errorCode models.RequestErrorCode) {
	respond(w, code, &models.Response{Error: errorCode})
}

// RespondWithBody - responds with the payload in the envelope
func RespondWithBody(w http.ResponseWriter, code int, payload interface{}) {
	respond(w, code, &models.Response{Body: payload})
}

// Unauthorized - onAbsent handler of session guarded API routes
func Unauthorized() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, http.StatusUnauthorized, InvalidToken)
	})
}
