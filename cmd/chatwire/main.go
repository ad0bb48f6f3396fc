package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/repository"
)

func main() {
	// Parse command-line flags
	roomID := flag.String("room", "", "Chat room id to join")
	userID := flag.String("user", "", "Sending user id")
	appID := flag.String("app", "chatwire", "Application id")
	token := flag.String("token", "", "Access token passed on every publish")
	flag.Parse()

	if *roomID == "" || *userID == "" {
		log.Fatal("Both -room and -user are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	repo, err := repository.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build repository: %v", err)
	}

	ctx := context.Background()
	if err := repo.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer repo.Disconnect()

	log.Printf("Connected to %s as %s", cfg.SocketURL, *userID)

	stream, err := repo.SubscribeToChatMessages(ctx, *roomID)
	if err != nil {
		log.Fatalf("Failed to subscribe to room %s: %v", *roomID, err)
	}
	defer stream.Close()

	log.Printf("Subscribed to %s", stream.RoomDestination())

	// Print incoming messages; a failed element is reported and skipped.
	go func() {
		for d := range stream.Messages() {
			if d.Err != nil {
				log.Printf("Dropping undeliverable message: %v", d.Err)
				continue
			}
			switch d.Message.Kind {
			case "JOIN":
				fmt.Printf("*** %s joined the room ***\n", d.Message.SenderID)
			case "LEAVE":
				fmt.Printf("*** %s left the room ***\n", d.Message.SenderID)
			default:
				fmt.Printf("[%s]: %s\n", d.Message.SenderID, d.Message.Content)
				if d.Message.AttachmentURL != "" {
					fmt.Printf("    attachment: %s\n", d.Message.AttachmentURL)
				}
			}
		}
	}()

	// Read from stdin and publish. "/upload <path>" shares a file.
	fmt.Println("Type your messages, '/upload <path>' to share a file, 'quit' to exit:")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		if path, ok := strings.CutPrefix(text, "/upload "); ok {
			publicURL, err := repo.UploadAttachment(ctx, strings.TrimSpace(path))
			if err != nil {
				log.Printf("Upload failed: %v", err)
				continue
			}
			if err := repo.SendChatMessage(ctx, *appID, *roomID, *token, *userID, "", publicURL); err != nil {
				log.Printf("Failed to send attachment message: %v", err)
			}
			continue
		}

		if err := repo.SendChatMessage(ctx, *appID, *roomID, *token, *userID, text, ""); err != nil {
			log.Printf("Failed to send message: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading input: %v", err)
	}

	log.Println("Disconnected from broker")
}
