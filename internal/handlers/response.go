// internal/handlers/response.go
package handlers

import (
	"strings"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
)

// ResponseSender 원격 명령 응답 전송기
type ResponseSender struct {
	publisher interfaces.MessagePublisher
	topic     string
	logger    interfaces.Logger
}

// NewResponseSender 응답 전송기 생성
func NewResponseSender(publisher interfaces.MessagePublisher, topic string, logger interfaces.Logger) *ResponseSender {
	return &ResponseSender{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// standardizeResponse reduces parameterized commands to their base name,
// so PICK_PLACE:<..>:<..> is answered as PICK_PLACE:<status>.
func (r *ResponseSender) standardizeResponse(command, status string) string {
	if base, _, found := strings.Cut(command, ":"); found {
		r.logger.Debugf("🔄 Response standardized: %s → %s:%s", command, base, status)
		return base + ":" + status
	}
	return command + ":" + status
}

// SendResponse 응답 전송
func (r *ResponseSender) SendResponse(command, status, errMsg string) error {
	response := r.standardizeResponse(command, status)

	if status == constants.StatusFailure && errMsg != "" {
		r.logger.Errorf("Command %s failed: %s", command, errMsg)
	}
	if status == constants.StatusRejected && errMsg != "" {
		r.logger.Warnf("Command %s rejected: %s", command, errMsg)
	}

	if err := r.publisher.Publish(r.topic, 0, false, response); err != nil {
		r.logger.Errorf("Failed to send response %s: %v", response, err)
		return err
	}

	r.logger.Infof("Response sent: %s", response)
	return nil
}

// SendSuccess 성공 응답 전송
func (r *ResponseSender) SendSuccess(command string) error {
	return r.SendResponse(command, constants.StatusSuccess, "")
}

// SendFailure 실패 응답 전송
func (r *ResponseSender) SendFailure(command, errMsg string) error {
	return r.SendResponse(command, constants.StatusFailure, errMsg)
}

// SendRejected 거부 응답 전송
func (r *ResponseSender) SendRejected(command, reason string) error {
	return r.SendResponse(command, constants.StatusRejected, reason)
}

// SendRunning 수락 응답 전송
func (r *ResponseSender) SendRunning(command string) error {
	return r.SendResponse(command, constants.StatusRunning, "")
}
