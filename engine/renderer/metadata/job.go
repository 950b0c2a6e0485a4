package metadata

/** Definition for the entry point of a job. Results are sent on out. */
type JobStart func(params interface{}, out chan<- interface{}) error

/** Definition for completion of a job. */
type JobOnComplete func(results <-chan interface{})

/**
 * @brief Describes a job to be run by the job system.
 */
type JobTask struct {
	/** @brief Invoked when the job starts. Required. */
	OnStart JobStart
	/** @brief Invoked when OnStart returned no error. Optional. */
	OnComplete JobOnComplete
	/** @brief Invoked when OnStart returned an error. Optional. */
	OnFailure JobOnComplete
	/** @brief Invoked after OnComplete or OnFailure. Optional. */
	OnCompletionCallback func()
	/** @brief Data passed to the entry point upon execution. */
	InputParams interface{}
}
