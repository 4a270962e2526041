package application

// StatusMessage is the fixed liveness message reported by the home route.
const StatusMessage = "server running"

// Status is the liveness view of the service.
type Status struct {
	Message   string
	ChatReady bool
}

// StatusService reports liveness. It never touches the upstream API, so the
// status it returns does not depend on credential validity or upstream health.
type StatusService struct {
	chatSvc *ChatService
}

// NewStatusService creates a StatusService. chatSvc may be nil.
func NewStatusService(chatSvc *ChatService) *StatusService {
	return &StatusService{chatSvc: chatSvc}
}

// Current returns the fixed status message and whether chat is configured.
func (s *StatusService) Current() Status {
	return Status{
		Message:   StatusMessage,
		ChatReady: s.chatSvc != nil && s.chatSvc.Ready(),
	}
}
