// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// ChatPageViewModel holds everything the chat page needs to render the transcript.
type ChatPageViewModel struct {
	Title     string
	Status    string
	ChatReady bool
	CSRFToken string

	// Turns is the transcript, oldest first. It lives only in the page's
	// hidden form fields; the server keeps nothing between requests.
	Turns []TurnViewModel
}

// TurnViewModel is one question and the reply or notice shown for it.
type TurnViewModel struct {
	// Question is the text the user submitted, echoed back verbatim.
	Question string
	// Answer is the model's raw markdown reply, carried in the form so it can
	// be re-rendered on the next submit.
	Answer string
	// AnswerHTML is sanitized HTML rendered from Answer.
	AnswerHTML string
	// Notice is shown in place of an answer when the exchange failed.
	Notice string
}

// Failed reports whether the turn shows a notice instead of an answer.
func (t TurnViewModel) Failed() bool {
	return t.Notice != ""
}
