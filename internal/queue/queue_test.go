package queue

import (
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

func TestRetriesFrom(t *testing.T) {
	cases := []struct {
		name    string
		headers amqp091.Table
		want    int
	}{
		{"nil headers", nil, 0},
		{"absent", amqp091.Table{}, 0},
		{"int32", amqp091.Table{retriesHeader: int32(3)}, 3},
		{"int64", amqp091.Table{retriesHeader: int64(7)}, 7},
		{"mistyped", amqp091.Table{retriesHeader: "many"}, 0},
	}
	for _, c := range cases {
		if got := retriesFrom(c.headers); got != c.want {
			t.Fatalf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}
