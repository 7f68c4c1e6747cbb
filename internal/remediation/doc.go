// Package remediation runs the code remediation pipeline.
//
// A Service is built once at startup with its collaborators (retriever,
// prompt builder, generator, metrics recorder) and handles every request:
//
//	Validated -> Retrieved -> PromptBuilt -> Generated -> CodeExtracted
//	  -> Diffed -> ExplanationGenerated -> Logged -> Done
//
// A failed generation moves the request to Failed. One metrics record is
// written for every request that reaches generation, whether it succeeds
// or fails, and a failure is returned as a *PipelineError.
//
// Requests are built with NewRequest, which validates and normalizes the
// input once; the pipeline never mutates them.
package remediation
