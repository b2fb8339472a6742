package api

import (
	"context"
	"fmt"
	"net/http"
)

var (
	endpointListTopics  = endpoint{http.MethodGet, "/topics"}
	endpointCreateTopic = endpoint{http.MethodPost, "/topics"}
	endpointTopic       = endpoint{http.MethodGet, "/topics/{id}"}
	endpointAddComment  = endpoint{http.MethodPost, "/topics/{id}/comments"}
)

// ListTopics returns all forum topics
func (c *Client) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	if err := c.do(ctx, endpointListTopics, endpointListTopics.route, nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// CreateTopic starts a new forum topic
func (c *Client) CreateTopic(ctx context.Context, topic NewTopic) error {
	return c.do(ctx, endpointCreateTopic, endpointCreateTopic.route, topic, nil)
}

// Topic returns one topic with its comments
func (c *Client) Topic(ctx context.Context, id int64) (*Topic, error) {
	var topic Topic
	if err := c.do(ctx, endpointTopic, fmt.Sprintf("/topics/%d", id), nil, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// AddComment posts a comment on a topic
func (c *Client) AddComment(ctx context.Context, topicID int64, body string) error {
	payload := map[string]string{"body": body}
	return c.do(ctx, endpointAddComment, fmt.Sprintf("/topics/%d/comments", topicID), payload, nil)
}
