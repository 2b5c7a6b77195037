package prompts

// CaptionInstruction is sent with every image to the remote model.
const CaptionInstruction = "Describe this image in a single, concise sentence."

// CaptionSystemPrompt constrains the remote model to caption-shaped output.
const CaptionSystemPrompt = `You write image captions.
Reply with one plain sentence describing the main subject and setting.
Do not add quotes, lists, markdown or commentary.`

// LocalCaptionPrompt is used with the locally hosted model, which follows
// short instructions better than long system prompts.
const LocalCaptionPrompt = "Write a short caption for this image."
