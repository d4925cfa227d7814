package es

import (
	"Chatline/internal/model"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/versiontype"
)

type MessageRepo interface {
	IndexMessage(ctx context.Context, msg *MessageES, version int64) error
	DeleteMessage(ctx context.Context, id string) error
	Search(ctx context.Context, conversationIDs []string, query string, after []interface{}, limit int) ([]string, []interface{}, error)
	Apply(ctx context.Context, event *model.MessageEvent) error
}

type MessageRepoImpl struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewMessageRepo(client *elasticsearch.TypedClient, index string) MessageRepo {
	return &MessageRepoImpl{client: client, index: index}
}

// IndexMessage 外部版本号写入，旧事件晚到时被忽略
func (s *MessageRepoImpl) IndexMessage(ctx context.Context, msg *MessageES, version int64) error {
	_, err := s.client.Index(s.index).
		Id(msg.ID).
		Document(msg).
		Version(strconv.FormatInt(version, 10)).
		VersionType(versiontype.External).
		Do(ctx)

	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) && e.Status == ConflictCode {
			log.Warn("Version conflict detected, skipping old data", "message_id", msg.ID, "version", version)
			return nil
		}
		return err
	}
	return nil
}

func (s *MessageRepoImpl) DeleteMessage(ctx context.Context, id string) error {
	_, err := s.client.Delete(s.index, id).Do(ctx)
	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) && e.Status == NotFoundCode {
			log.Warn("Message already deleted or not found in ES", "message_id", id)
			return nil
		}
		return err
	}
	return nil
}

// Search 在给定会话内全文检索，按相关性、时间倒序，返回命中 ID 与最后一条的排序值
func (s *MessageRepoImpl) Search(ctx context.Context, conversationIDs []string, query string, after []interface{}, limit int) ([]string, []interface{}, error) {
	if len(conversationIDs) == 0 {
		return []string{}, nil, nil
	}
	convValues := make([]types.FieldValue, len(conversationIDs))
	for i, id := range conversationIDs {
		convValues[i] = id
	}

	req := s.client.Search().
		Index(s.index).
		Query(&types.Query{
			Bool: &types.BoolQuery{
				Must: []types.Query{{
					Match: map[string]types.MatchQuery{"content": {Query: query}},
				}},
				Filter: []types.Query{{
					Terms: &types.TermsQuery{TermsQuery: map[string]types.TermsQueryField{
						"conversation_id": convValues,
					}},
				}},
			},
		}).
		Sort(
			types.SortOptions{SortOptions: map[string]types.FieldSort{"_score": {Order: &sortorder.Desc}}},
			types.SortOptions{SortOptions: map[string]types.FieldSort{"created_at": {Order: &sortorder.Desc}}},
			types.SortOptions{SortOptions: map[string]types.FieldSort{"id": {Order: &sortorder.Desc}}},
		).
		Source_(&types.SourceFilter{Includes: []string{"id"}}).
		Size(limit)

	if len(after) > 0 {
		searchAfterValues := make([]types.FieldValue, len(after))
		for i, v := range after {
			searchAfterValues[i] = v
		}
		req.SearchAfter(searchAfterValues...)
	}

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("search messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits.Hits))
	var next []interface{}
	for _, hit := range resp.Hits.Hits {
		if hit.Id_ == nil {
			continue
		}
		ids = append(ids, *hit.Id_)
		if len(hit.Sort) > 0 {
			next = make([]interface{}, len(hit.Sort))
			for i, v := range hit.Sort {
				next[i] = v
			}
		}
	}
	return ids, next, nil
}

// Apply 按事件类型更新索引
func (s *MessageRepoImpl) Apply(ctx context.Context, event *model.MessageEvent) error {
	switch event.Action {
	case model.MessageEventCreated, model.MessageEventEdited:
		return s.IndexMessage(ctx, &MessageES{
			ID:             event.MessageID,
			ConversationID: event.ConversationID,
			SenderID:       event.SenderID,
			Content:        event.Content,
			MessageType:    event.MessageType,
			CreatedAt:      event.CreatedAt,
		}, event.OccurredAt.UnixNano())
	case model.MessageEventDeleted:
		return s.DeleteMessage(ctx, event.MessageID)
	default:
		log.Warn("Unknown message event action", "action", event.Action, "message_id", event.MessageID)
		return nil
	}
}
