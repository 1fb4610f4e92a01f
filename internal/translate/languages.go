package translate

// IdentityLanguage is the target code that never requires a backend call.
const IdentityLanguage = "en"

// supportedLanguages is the fixed enumerated mapping of translation targets.
var supportedLanguages = map[string]string{
	"en":    "English",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"it":    "Italian",
	"pt":    "Portuguese",
	"ru":    "Russian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"zh-cn": "Chinese (Simplified)",
	"hi":    "Hindi",
	"ar":    "Arabic",
	"bn":    "Bengali",
	"ur":    "Urdu",
	"te":    "Telugu",
	"ta":    "Tamil",
	"mr":    "Marathi",
	"gu":    "Gujarati",
}

// backendCodeOverrides maps codes the translation backend spells differently.
var backendCodeOverrides = map[string]string{
	"zh-cn": "zh-CN",
}

// SupportedLanguages returns a copy of the code-to-display-name mapping.
func SupportedLanguages() map[string]string {
	out := make(map[string]string, len(supportedLanguages))
	for code, name := range supportedLanguages {
		out[code] = name
	}
	return out
}

// IsSupported reports whether a language code is a valid translation target.
func IsSupported(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// DisplayName returns the human-readable name for a supported code.
func DisplayName(code string) string {
	return supportedLanguages[code]
}

// backendCode maps a supported code to the backend's expected spelling.
func backendCode(code string) string {
	if mapped, ok := backendCodeOverrides[code]; ok {
		return mapped
	}
	return code
}
