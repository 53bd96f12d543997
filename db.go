package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Recording is the persisted index entry of a finished GIF.
type Recording struct {
	Path     string  `json:"path"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

type DB redis.Client

func NewDB(redisURL string) (*DB, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	db := redis.NewClient(opt)
	if err := db.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return (*DB)(db), nil
}

func (db *DB) LoadRecordings() map[string]Recording {
	ids, err := db.Keys(context.Background(), "*").Result()
	if err != nil {
		log.Println("Redis error:", err)
		return nil
	}
	results := make(map[string]Recording)
	for _, id := range ids {
		data, err := db.Get(context.Background(), id).Result()
		if err != nil {
			log.Println("Redis error:", err)
			continue
		}
		var rec Recording
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			log.Println("Bad recording entry:", err)
			continue
		}
		results[id] = rec
	}
	return results
}

func (db *DB) SaveRecording(id string, rec Recording, expiration time.Duration) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Println("Bad recording entry:", err)
		return
	}
	if err := db.Set(context.Background(), id, data, expiration).Err(); err != nil {
		log.Println("Redis error:", err)
	}
}
