// Package mail composes and delivers transactional email.
package mail

import (
	"errors"
	"fmt"
	"strings"
)

// Message is a single outbound email. It is also the queue payload consumed
// by the mailer worker.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Validate reports whether the message can be handed to a sender.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail: recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mail: subject is required")
	}
	return nil
}

const welcomeSubject = "Welcome to Tech-E: Your AI Companion is Here!"

const welcomeHTML = `<h1>Welcome to Tech-E! We're excited to have you join our community.</h1>
<p>Tech-E is more than just an assistant. It's a lifelike AI companion designed to support you in your coding, productivity, and overall well-being. Whether you're tackling a tough project or seeking balance in your work life, Tech-E is here to help.</p>
<p>Start exploring how Tech-E can make a difference in your daily routine.</p>
<p>Cheers,<br/>Tech-E.</p>`

// WelcomeMessage is sent once after a successful registration.
func WelcomeMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: welcomeSubject,
		Text:    fmt.Sprintf("Welcome to Our Platform, %s! We're glad to have you here.", name),
		HTML:    welcomeHTML,
	}
}
