// Package process supervises encoder subprocesses.
//
// A Job wraps a single exec.Cmd started in its own process group:
//   - stdout is an OS pipe read directly through Job.Read, so a slow reader
//     blocks the encoder instead of queueing output
//   - stderr is logged through a pluggable LogParser and its last lines are
//     kept for error reports
//   - Stop sends SIGINT to the group, then SIGKILL after a timeout
//
// Jobs move through Starting, Streaming, and finally Exited or Failed.
// Done is closed once the process is reaped; Err holds an *EncodingError
// for failed jobs.
//
// Registry tracks the jobs of live sessions so they can be listed and
// stopped together on shutdown.
//
//	job, err := process.Start(ctx, process.Spec{ID: id, Path: path, Args: args},
//	    process.WithLogParser(ffmpegLogger, ffmpeg.ParseLogLevel))
//	if err != nil {
//	    return err
//	}
//	defer job.Close()
//	io.Copy(w, job)
package process
