package core

import "context"

// The task-and-reply pattern: run a task on one queue, then schedule a
// continuation onto another (typically the main queue). The reply is never
// run inline on the worker that finished the task, so it always observes the
// reply queue's serialization.

// postTaskAndReplyInternal wraps task so that, if it completes without
// panicking, reply is posted to replyQueue. A panicked task suppresses the
// reply; the panic itself is handled by the target queue's recovery path.
func postTaskAndReplyInternal(
	targetQueue TaskRunner,
	task Task,
	reply Task,
	replyQueue TaskRunner,
	traits TaskTraits,
) {
	if replyQueue == nil {
		targetQueue.PostTaskWithTraits(task, traits)
		return
	}

	wrappedTask := func(ctx context.Context) {
		task(ctx)
		// Only reached when task did not panic.
		replyQueue.PostTaskWithTraits(reply, DefaultTaskTraits())
	}

	targetQueue.PostTaskWithTraits(wrappedTask, traits)
}

// TaskWithResult is a task body producing a value and an error.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult consumes the task's result on the reply queue.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// PostTaskAndReplyWithResult executes task on targetQueue and passes its
// result to reply on replyQueue.
//
// The captured result escapes to the heap; the happens-before edge from the
// task's completion to the reply's admission makes the hand-off safe without
// extra synchronization.
//
// Example:
//
//	PostTaskAndReplyWithResult(
//	    backgroundQueue,
//	    func(ctx context.Context) ([]byte, error) {
//	        return fetchImage(ctx, url)
//	    },
//	    func(ctx context.Context, img []byte, err error) {
//	        updateView(img, err)
//	    },
//	    mainQueue,
//	)
func PostTaskAndReplyWithResult[T any](
	targetQueue TaskRunner,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyQueue TaskRunner,
) {
	PostTaskAndReplyWithResultAndTraits(
		targetQueue, task, DefaultTaskTraits(),
		reply, DefaultTaskTraits(), replyQueue,
	)
}

// PostTaskAndReplyWithResultAndTraits allows different traits for task and
// reply, e.g. background-class work whose reply is an interactive UI update.
func PostTaskAndReplyWithResultAndTraits[T any](
	targetQueue TaskRunner,
	task TaskWithResult[T],
	taskTraits TaskTraits,
	reply ReplyWithResult[T],
	replyTraits TaskTraits,
	replyQueue TaskRunner,
) {
	var result T
	var err error

	wrappedTask := func(ctx context.Context) {
		result, err = task(ctx)
		if replyQueue != nil {
			replyQueue.PostTaskWithTraits(func(ctx context.Context) {
				reply(ctx, result, err)
			}, replyTraits)
		}
	}

	targetQueue.PostTaskWithTraits(wrappedTask, taskTraits)
}
