package i18n

// Built-in message bundles. Keys mirror the error-code message keys in
// the error registry plus the validation messages.
var defaultBundles = map[string]map[string]string{
	"en": {
		"validation.invalid_extension": "The file extension ':extension' is not allowed.",
		"validation.invalid_mime_type": "The file type ':type' is not allowed.",
		"validation.file_too_large":    "The file exceeds the maximum allowed size of :size.",
		"validation.invalid_filename":  "The file name ':filename' contains invalid characters.",

		"errors.user.undefined_error":      "An unexpected error occurred. Please try again later.",
		"errors.user.fallback_error":       "Something went wrong. Our team has been notified.",
		"errors.user.invalid_file":         "The file ':filename' cannot be uploaded.",
		"errors.user.too_many_files":       "You cannot upload more than :max files at once.",
		"errors.user.max_total_size":       "The selected files exceed the total size limit of :size.",
		"errors.user.virus_found":          "The file ':filename' appears to be infected and was rejected.",
		"errors.user.scan_failed":          "The virus scan could not be completed for ':filename'.",
		"errors.user.upload_failed":        "The upload of ':filename' failed. Please try again.",
		"errors.user.unexpected_response":  "The server returned an unexpected response.",
		"errors.user.invalid_token":        "Your session has expired. Please reload the page.",
		"errors.user.simulation_forbidden": "Error simulation is not available in this environment.",

		"errors.dev.undefined_error":     "no configuration found for error code :_original_code, fell back to UNDEFINED_ERROR_CODE",
		"errors.dev.fallback_error":      "last-resort fallback configuration used for :_original_code",
		"errors.dev.invalid_file":        "file :filename rejected by server-side validation",
		"errors.dev.too_many_files":      "file count exceeds negotiated limit",
		"errors.dev.max_total_size":      "total upload size exceeds negotiated limit",
		"errors.dev.virus_found":         "virus signature matched in :filename",
		"errors.dev.scan_failed":         "scanner error for :filename",
		"errors.dev.upload_failed":       "upload pipeline failed for :filename",
		"errors.dev.unexpected_response": "non-JSON failure response from upload endpoint",
		"errors.dev.invalid_token":       "missing or invalid CSRF token",
	},
	"it": {
		"validation.invalid_extension": "L'estensione ':extension' non è consentita.",
		"validation.invalid_mime_type": "Il tipo di file ':type' non è consentito.",
		"validation.file_too_large":    "Il file supera la dimensione massima consentita di :size.",
		"validation.invalid_filename":  "Il nome del file ':filename' contiene caratteri non validi.",

		"errors.user.undefined_error":      "Si è verificato un errore imprevisto. Riprova più tardi.",
		"errors.user.fallback_error":       "Qualcosa è andato storto. Il nostro team è stato avvisato.",
		"errors.user.invalid_file":         "Il file ':filename' non può essere caricato.",
		"errors.user.too_many_files":       "Non puoi caricare più di :max file alla volta.",
		"errors.user.max_total_size":       "I file selezionati superano il limite totale di :size.",
		"errors.user.virus_found":          "Il file ':filename' risulta infetto ed è stato rifiutato.",
		"errors.user.scan_failed":          "La scansione antivirus di ':filename' non è stata completata.",
		"errors.user.upload_failed":        "Il caricamento di ':filename' non è riuscito. Riprova.",
		"errors.user.unexpected_response":  "Il server ha restituito una risposta inattesa.",
		"errors.user.invalid_token":        "La sessione è scaduta. Ricarica la pagina.",
		"errors.user.simulation_forbidden": "La simulazione degli errori non è disponibile in questo ambiente.",
	},
}
