package engine

// LLM prompt templates: data only, no logic.

// AnalyzePrompt asks for the four-section analysis of a transcript.
// Args: space-joined transcript text.
const AnalyzePrompt = `Analyze the following YouTube video transcript in detail. Include:
1. Main topics and key points
2. A concise summary
3. Key insights or takeaways
4. Any notable quotes or statements

Transcript:
%s`

// ChatPrompt answers one question strictly from the transcript.
// Args: video ID, transcript text, user question.
const ChatPrompt = `You are an AI assistant that answers questions about YouTube videos based on their transcript.

Video ID: %s
Transcript: %s

User question: %s

Please answer the question based only on the information provided in the transcript. If the answer cannot be found in the transcript, politely say so. Keep your answer concise but informative.`
