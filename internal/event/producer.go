package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MoonJiyun2/IdeaShelf/internal/domain"
	pkgkafka "github.com/MoonJiyun2/IdeaShelf/pkg/kafka"
	"github.com/MoonJiyun2/IdeaShelf/pkg/logger"
)

// Kafka topics for IdeaShelf domain events.
var (
	TopicBookCreated   = pkgkafka.Topic("book", "created")
	TopicReviewCreated = pkgkafka.Topic("review", "created")
	TopicReviewLiked   = pkgkafka.Topic("review", "liked")
)

// Aggregate types.
const (
	AggregateTypeBook   = "book"
	AggregateTypeReview = "review"
)

// Source identifies events published by this server.
const Source = "ideashelf"

// BookCreatedData is the payload for a book.created event.
type BookCreatedData struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Genre     string  `json:"genre"`
	CoverPath *string `json:"cover_path,omitempty"`
}

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ID       int64  `json:"id"`
	BookID   int64  `json:"book_id"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Nickname string `json:"nickname"`
	Rating   *int   `json:"rating,omitempty"`
}

// ReviewLikedData is the payload for a review.liked event.
type ReviewLikedData struct {
	ID    int64 `json:"id"`
	Likes int   `json:"likes"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes domain events. A Producer built without a Kafka
// producer drops every event, which is how the server runs with
// KAFKA_ENABLED=false.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer. kafka may be nil.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	if kafka == nil {
		return &Producer{logger: logger}
	}
	return &Producer{kafka: kafka, logger: logger}
}

// PublishBookCreated publishes a book.created event.
func (p *Producer) PublishBookCreated(ctx context.Context, book *domain.Book) error {
	return p.publish(ctx, TopicBookCreated, AggregateTypeBook, book.ID, BookCreatedData{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		Genre:     book.Genre,
		CoverPath: book.CoverPath,
	})
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, AggregateTypeReview, review.ID, ReviewCreatedData{
		ID:       review.ID,
		BookID:   review.BookID,
		ParentID: review.ParentID,
		Nickname: review.Nickname,
		Rating:   review.Rating,
	})
}

// PublishReviewLiked publishes a review.liked event.
func (p *Producer) PublishReviewLiked(ctx context.Context, id int64, likes int) error {
	return p.publish(ctx, TopicReviewLiked, AggregateTypeReview, id, ReviewLikedData{ID: id, Likes: likes})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType string, id int64, data any) error {
	if p.kafka == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateType, id, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published domain event",
		slog.String("topic", topic),
		slog.Int64("aggregate_id", id),
	)
	return nil
}
