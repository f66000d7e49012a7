// Package sse implements the streaming side of the push subsystem.
//
// An EventSourceClient owns one server-sent events connection at a time. Each
// inbound frame is decoded by the NotificationParser and handed to the
// NotificationProcessor, which queues split and segment refreshes on the
// Workers and forwards CONTROL and OCCUPANCY traffic to the
// NotificationKeeper. Error frames and connection outcomes go to the
// StatusTracker, the single owner of the push status, which reports health
// changes to a FeedbackListener. The Handler ties these together and reopens
// the stream with exponential backoff when the tracker asks for it.
package sse
